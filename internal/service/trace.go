package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sshcollectorpro/arubatrace/internal/aruba"
	"github.com/sshcollectorpro/arubatrace/internal/config"
	"github.com/sshcollectorpro/arubatrace/internal/textfsm"
	"github.com/sshcollectorpro/arubatrace/pkg/logger"
)

// ErrNoDevice 请求与配置都没有给出设备地址
var ErrNoDevice = errors.New("device host is required")

// 批量追踪时同时打开的会话上限
const defaultFanout = 4

// TraceService 为每个请求打开独立的 Driver，执行完毕即关闭。
// 同一台设备上的请求串行执行，避免占满设备的管理会话。
type TraceService struct {
	cfg       atomic.Pointer[config.Config]
	dialer    aruba.Dialer
	registry  *textfsm.Registry
	extractor aruba.Extractor

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewTraceService 按配置加载模板；templates.dir 中的同名模板覆盖内置模板
func NewTraceService(cfg *config.Config) (*TraceService, error) {
	registry := textfsm.Default()
	if dir := strings.TrimSpace(cfg.Templates.Dir); dir != "" {
		registry = textfsm.NewRegistry()
		if err := registry.LoadDir(dir); err != nil {
			return nil, fmt.Errorf("failed to load templates from %s: %w", dir, err)
		}
		logger.Infof("Loaded templates from %s: %v", dir, registry.Names())
	}
	s := &TraceService{
		registry:  registry,
		extractor: aruba.NewTemplateExtractor(registry),
		locks:     make(map[string]*sync.Mutex),
	}
	s.cfg.Store(cfg)
	return s, nil
}

func (s *TraceService) Start(ctx context.Context) error { return nil }
func (s *TraceService) Stop() error                     { return nil }

// SetConfig 替换配置，只影响之后打开的会话
func (s *TraceService) SetConfig(cfg *config.Config) {
	s.cfg.Store(cfg)
}

// Templates 返回当前生效的模板名
func (s *TraceService) Templates() []string {
	return s.registry.Names()
}

// SetDialer 替换建立会话的方式，nil 恢复默认 SSH
func (s *TraceService) SetDialer(d aruba.Dialer) {
	s.dialer = d
}

// TraceResponse 单台设备的追踪结果
type TraceResponse struct {
	aruba.TraceResult `yaml:",inline"`

	Device   string `json:"device" yaml:"device"`
	MAC      string `json:"mac" yaml:"mac"`
	Duration string `json:"duration" yaml:"duration"`
}

// PrivilegeResponse 会话权限
type PrivilegeResponse struct {
	Device    string      `json:"device" yaml:"device"`
	Privilege aruba.Level `json:"privilege" yaml:"privilege"`
}

// Neighbor LLDP 邻居
type Neighbor struct {
	LocalPort         string `json:"local_port" yaml:"local_port"`
	ChassisID         string `json:"chassis_id" yaml:"chassis_id"`
	PortID            string `json:"port_id" yaml:"port_id"`
	SystemName        string `json:"system_name" yaml:"system_name"`
	SystemDescription string `json:"system_description" yaml:"system_description"`
	PortDescription   string `json:"port_description" yaml:"port_description"`
}

// NeighborsResponse 接口的 LLDP 邻居列表
type NeighborsResponse struct {
	Device    string     `json:"device" yaml:"device"`
	Interface string     `json:"interface" yaml:"interface"`
	Neighbors []Neighbor `json:"neighbors" yaml:"neighbors"`
}

// Trace 在 device 上追踪 mac
func (s *TraceService) Trace(ctx context.Context, device, mac string) (*TraceResponse, error) {
	start := time.Now()
	resp := &TraceResponse{MAC: mac}
	err := s.withDriver(ctx, device, func(host string, d *aruba.Driver) error {
		resp.Device = host
		res, err := d.Trace(ctx, mac)
		resp.TraceResult = res
		return err
	})
	resp.Duration = time.Since(start).String()
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// TraceMany 在多台设备上并发追踪同一个 mac，结果顺序与 devices 一致。
// 任一设备失败时返回第一个错误。
func (s *TraceService) TraceMany(ctx context.Context, devices []string, mac string) ([]*TraceResponse, error) {
	results := make([]*TraceResponse, len(devices))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(defaultFanout)
	for i, device := range devices {
		g.Go(func() error {
			resp, err := s.Trace(gctx, device, mac)
			if err != nil {
				return fmt.Errorf("%s: %w", device, err)
			}
			results[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Privilege 查询会话当前权限
func (s *TraceService) Privilege(ctx context.Context, device string) (*PrivilegeResponse, error) {
	resp := &PrivilegeResponse{}
	err := s.withDriver(ctx, device, func(host string, d *aruba.Driver) error {
		resp.Device = host
		resp.Privilege = d.Privilege()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Neighbors 查询接口的 LLDP 邻居；iface 为空时返回全部
func (s *TraceService) Neighbors(ctx context.Context, device, iface string) (*NeighborsResponse, error) {
	resp := &NeighborsResponse{Interface: iface, Neighbors: []Neighbor{}}
	err := s.withDriver(ctx, device, func(host string, d *aruba.Driver) error {
		resp.Device = host
		if err := d.Escalate(ctx); err != nil {
			return err
		}
		rows, err := d.NeighborsDetail(ctx, iface)
		if err != nil {
			return err
		}
		for _, r := range rows {
			resp.Neighbors = append(resp.Neighbors, Neighbor{
				LocalPort:         r[aruba.FieldLocalPort],
				ChassisID:         r[aruba.FieldChassisID],
				PortID:            r[aruba.FieldPortID],
				SystemName:        r[aruba.FieldSystemName],
				SystemDescription: r[aruba.FieldSystemDescription],
				PortDescription:   r[aruba.FieldPortDescription],
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// withDriver 打开 Driver 执行 fn 后关闭，同一 host 串行
func (s *TraceService) withDriver(ctx context.Context, device string, fn func(host string, d *aruba.Driver) error) error {
	cfg := s.cfg.Load()
	opts := cfg.DriverOptions(strings.TrimSpace(device))
	host := opts.Connection.Host
	if host == "" {
		return ErrNoDevice
	}
	opts.Dialer = s.dialer
	opts.Extractor = s.extractor

	lock := s.hostLock(host)
	lock.Lock()
	defer lock.Unlock()

	log := logger.WithDevice(host)
	d, err := aruba.Open(ctx, opts)
	if err != nil {
		log.Errorf("Open session failed: %v", err)
		return err
	}
	defer func() {
		if cerr := d.Close(); cerr != nil {
			log.Debugf("Close session: %v", cerr)
		}
	}()
	return fn(host, d)
}

func (s *TraceService) hostLock(host string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[host]
	if !ok {
		l = &sync.Mutex{}
		s.locks[host] = l
	}
	return l
}
