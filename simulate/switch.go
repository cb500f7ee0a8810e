package simulate

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

const moreMarker = "-- MORE --, next page: Space, next line: Enter, quit: Control-C"

// switchSession 单个 SSH 会话的 CLI 状态
type switchSession struct {
	cfg     *Config
	id      int
	from    string
	rw      io.ReadWriter
	r       *bufio.Reader
	log     *logrus.Entry
	manager bool
	paging  bool
}

func newSwitchSession(cfg *Config, id int, from string, rw io.ReadWriter, log *logrus.Entry) *switchSession {
	return &switchSession{
		cfg:     cfg,
		id:      id,
		from:    from,
		rw:      rw,
		r:       bufio.NewReader(rw),
		log:     log.WithField("session", id),
		manager: strings.EqualFold(cfg.StartLevel, LevelManager),
		paging:  cfg.PageLines > 0,
	}
}

func (s *switchSession) write(text string) {
	_, _ = io.WriteString(s.rw, text)
}

func (s *switchSession) prompt() {
	suffix := ">"
	if s.manager {
		suffix = "#"
	}
	s.write(s.cfg.Hostname + suffix + " ")
}

// readLine 读取一行输入；echo 为 false 时不回显（口令输入）
func (s *switchSession) readLine(echo bool) (string, error) {
	var b strings.Builder
	for {
		c, err := s.r.ReadByte()
		if err != nil {
			return b.String(), err
		}
		switch c {
		case '\r', '\n':
			// \r\n 视为一次回车
			if c == '\r' && s.r.Buffered() > 0 {
				if next, _ := s.r.Peek(1); len(next) == 1 && next[0] == '\n' {
					_, _ = s.r.ReadByte()
				}
			}
			s.write("\r\n")
			return b.String(), nil
		case 0x7f, '\b':
			str := b.String()
			if len(str) > 0 {
				b.Reset()
				b.WriteString(str[:len(str)-1])
				if echo {
					s.write("\b \b")
				}
			}
		default:
			b.WriteByte(c)
			if echo {
				s.rw.Write([]byte{c})
			}
		}
	}
}

// waitKey 等待任意键（横幅与分页）
func (s *switchSession) waitKey() error {
	c, err := s.r.ReadByte()
	if err != nil {
		return err
	}
	if c == '\r' && s.r.Buffered() > 0 {
		if next, _ := s.r.Peek(1); len(next) == 1 && next[0] == '\n' {
			_, _ = s.r.ReadByte()
		}
	}
	return nil
}

func (s *switchSession) run() {
	if s.cfg.Banner != "" {
		s.write(crlf(s.cfg.Banner) + "\r\nPress any key to continue\r\n")
		if err := s.waitKey(); err != nil {
			return
		}
		// 与真实设备一致：清屏后再输出提示符
		s.write("\x1b[2J\x1b[H")
	}
	s.prompt()

	for {
		line, err := s.readLine(true)
		if err != nil {
			s.log.Debugf("Simulate: session closed: %v", err)
			return
		}
		cmd := strings.Join(strings.Fields(line), " ")
		if cmd == "" {
			s.prompt()
			continue
		}
		s.log.Debugf("Simulate: input %q", cmd)
		if quit := s.dispatch(cmd); quit {
			return
		}
		s.prompt()
	}
}

// dispatch 执行命令，返回 true 表示会话结束
func (s *switchSession) dispatch(cmd string) bool {
	fields := strings.Fields(strings.ToLower(cmd))
	args := strings.Fields(cmd)

	switch {
	case fields[0] == "exit" || fields[0] == "logout":
		return true
	case fields[0] == "enable":
		s.enable()
	case len(fields) == 2 && fields[0] == "no" && fields[1] == "page":
		if !s.manager {
			s.invalid("no")
			return false
		}
		s.paging = false
	case len(fields) == 3 && fields[0] == "terminal" && fields[1] == "length":
		s.paging = false
	case len(fields) == 2 && fields[0] == "show" && fields[1] == "telnet":
		s.output(s.showTelnet())
	case len(fields) == 3 && fields[0] == "show" && fields[1] == "mac-address":
		s.output(s.showMacAddress(fields[2]))
	case len(fields) >= 4 && fields[0] == "show" && fields[1] == "lldp" && fields[2] == "info" && fields[3] == "remote-device":
		port := ""
		if len(args) > 4 {
			port = args[4]
		}
		s.output(s.showLLDP(port))
	default:
		s.invalid(args[0])
	}
	return false
}

func (s *switchSession) invalid(word string) {
	s.write(fmt.Sprintf("Invalid input: %s\r\n", word))
}

func (s *switchSession) enable() {
	if s.manager {
		return
	}
	if s.cfg.Secret == "" {
		s.manager = true
		return
	}
	user := ""
	if s.cfg.EnableUsername != "" {
		s.write("Username: ")
		var err error
		if user, err = s.readLine(true); err != nil {
			return
		}
	}
	s.write("Password: ")
	pass, err := s.readLine(false)
	if err != nil {
		return
	}
	if user != s.cfg.EnableUsername || pass != s.cfg.Secret {
		s.log.Debugf("Simulate: enable failed for user %q", user)
		s.write("Invalid password\r\n")
		return
	}
	s.manager = true
}

// output 输出命令结果，启用分页时每 PageLines 行等待一次按键
func (s *switchSession) output(text string) {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, l := range lines {
		if s.paging && i > 0 && i%s.cfg.PageLines == 0 {
			s.write(moreMarker)
			if err := s.waitKey(); err != nil {
				return
			}
			// 擦除分页提示所在行
			s.write("\r\x1b[2K")
		}
		s.write(l + "\r\n")
	}
}

func (s *switchSession) levelName() string {
	if s.manager {
		return "Manager"
	}
	return "Operator"
}

func (s *switchSession) showTelnet() string {
	sep := " --------------------------------------------------------\n"
	var b strings.Builder
	b.WriteString("\n Telnet Activity\n\n Source IP Selection: Outgoing Interface\n\n")
	b.WriteString(sep)
	b.WriteString(" Session  :     1\n Privilege: Manager\n From     : Console\n To       :\n")
	b.WriteString(sep)
	fmt.Fprintf(&b, " Session  : ** %2d\n Privilege: %s\n From     : %s\n To       :\n", s.id, s.levelName(), s.from)
	return b.String()
}

func (s *switchSession) showMacAddress(mac string) string {
	var b strings.Builder
	var found []MacEntry
	for _, e := range s.cfg.MacTable {
		if strings.EqualFold(e.MAC, mac) {
			found = append(found, e)
		}
	}
	if len(found) == 0 {
		return fmt.Sprintf("\n MAC address %s not found.\n", mac)
	}
	fmt.Fprintf(&b, "\n Status and Counters - Address Table - %s\n\n", mac)
	b.WriteString("  Port   VLANs\n  ------ ------------------------------\n")
	for _, e := range found {
		vlans := e.VLANs
		if vlans == "" {
			vlans = "1"
		}
		fmt.Fprintf(&b, "  %-6s %s\n", e.Port, vlans)
	}
	return b.String()
}

func (s *switchSession) showLLDP(port string) string {
	var b strings.Builder
	b.WriteString("\n LLDP Remote Device Information Detail\n\n")
	for _, n := range s.cfg.Neighbors {
		if port != "" && !strings.EqualFold(n.LocalPort, port) {
			continue
		}
		fmt.Fprintf(&b, "  Local Port   : %s\n", n.LocalPort)
		b.WriteString("  ChassisType  : mac-address\n")
		fmt.Fprintf(&b, "  ChassisId    : %s\n", n.ChassisID)
		b.WriteString("  PortType     : local\n")
		fmt.Fprintf(&b, "  PortId       : %s\n", n.PortID)
		fmt.Fprintf(&b, "  SysName      : %s\n", n.SystemName)
		fmt.Fprintf(&b, "  System Descr : %s\n", n.SystemDescription)
		fmt.Fprintf(&b, "  PortDescr    : %s\n\n", n.PortDescription)
	}
	return b.String()
}

func crlf(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "\r\n")
}
