package aruba

import (
	"context"

	"github.com/sshcollectorpro/arubatrace/internal/textfsm"
)

// TraceResult MAC 追踪结果。查不到 MAC 或没有邻居不是错误，体现在字段中。
type TraceResult struct {
	Found                 bool   `json:"found" yaml:"found"`
	LLDPAnswer            bool   `json:"lldp_answer" yaml:"lldp_answer"`
	LocalPort             string `json:"local_port" yaml:"local_port"`
	RemotePort            string `json:"remote_port" yaml:"remote_port"`
	NextDevice            string `json:"next_device" yaml:"next_device"`
	NextDeviceDescription string `json:"next_device_description,omitempty" yaml:"next_device_description,omitempty"`
}

// stepOutcome 单个查询步骤的结果：命中或缺失，错误单独返回
type stepOutcome int

const (
	stepFound stepOutcome = iota
	stepAbsent
)

// Trace 查找 MAC 所在端口并返回该端口的 LLDP 邻居。
// 非法 MAC 在发送任何命令之前返回空结果；提权失败与传输错误原样返回。
func (d *Driver) Trace(ctx context.Context, macInput string) (TraceResult, error) {
	var res TraceResult

	mac, err := NormalizeMAC(macInput)
	if err != nil {
		d.log.Warnf("unrecognised mac format: %q", macInput)
		return res, nil
	}

	if err := d.Escalate(ctx); err != nil {
		return TraceResult{}, err
	}

	port, outcome, err := d.lookupMAC(ctx, mac)
	if err != nil {
		return TraceResult{}, err
	}
	if outcome == stepAbsent {
		d.log.Infof("no mac address %s found", mac)
		return res, nil
	}
	res.Found = true
	res.LocalPort = port
	d.log.Infof("found mac address %s on port %s", mac, port)

	neighbor, outcome, err := d.lookupNeighbor(ctx, port)
	if err != nil {
		return TraceResult{}, err
	}
	if outcome == stepFound {
		res.LLDPAnswer = true
		res.NextDevice = neighbor[FieldSystemName]
		res.NextDeviceDescription = neighbor[FieldSystemDescription]
		res.RemotePort = neighbor[FieldPortID]
		d.log.Infof("neighbour system name: %s, description: %s", res.NextDevice, res.NextDeviceDescription)
	}
	return res, nil
}

// lookupMAC 在 MAC 地址表中查找，返回第一条记录的端口
func (d *Driver) lookupMAC(ctx context.Context, mac MAC) (string, stepOutcome, error) {
	raw, err := d.exec.SendOne(ctx, "show mac-address "+mac.String())
	if err != nil {
		return "", stepAbsent, err
	}
	if IsMacNotFound(raw) {
		return "", stepAbsent, nil
	}
	rows, err := d.extractor.Extract(textfsm.ShowMacAddress, raw)
	if err != nil {
		return "", stepAbsent, err
	}
	if len(rows) == 0 || rows[0][FieldPort] == "" {
		d.log.Warnf("show mac-address %s returned no table rows", mac)
		return "", stepAbsent, nil
	}
	return rows[0][FieldPort], stepFound, nil
}

// lookupNeighbor 返回端口上的第一个 LLDP 邻居
func (d *Driver) lookupNeighbor(ctx context.Context, port string) (Record, stepOutcome, error) {
	rows, err := d.NeighborsDetail(ctx, port)
	if err != nil {
		return nil, stepAbsent, err
	}
	if len(rows) == 0 {
		return nil, stepAbsent, nil
	}
	return rows[0], stepFound, nil
}

// NeighborsDetail 查询接口的 LLDP 邻居详情；iface 为空时返回全部邻居
func (d *Driver) NeighborsDetail(ctx context.Context, iface string) ([]Record, error) {
	cmd := "show lldp info remote-device"
	if iface != "" {
		cmd += " " + iface
	}
	raw, err := d.exec.SendOne(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return d.extractor.Extract(textfsm.ShowLLDPInfoRemoteDevice, raw)
}
