package cli

import (
	"bufio"
	"encoding/json"
	"io"
	"net"
	"strings"
	"time"

	"github.com/mdp/qrterminal/v3"
)

// SendCommand sends one line to the daemon's control socket and returns
// the reply line.
func SendCommand(path string, cmd string, timeout time.Duration) (string, error) {
	c, err := net.DialTimeout("unix", path, timeout)
	if err != nil {
		return "", err
	}
	defer c.Close()
	if err := c.SetDeadline(time.Now().Add(timeout)); err != nil {
		return "", err
	}
	if _, err := c.Write([]byte(strings.TrimSpace(cmd) + "\n")); err != nil {
		return "", err
	}
	reply, err := bufio.NewReader(c).ReadString('\n')
	if err != nil && len(reply) == 0 {
		return "", err
	}
	return strings.TrimRight(reply, "\n"), nil
}

// PairingDescriptor is what the companion app scans to find the bridge.
type PairingDescriptor struct {
	Name    string `json:"name"`
	Service string `json:"service"`
	Token   string `json:"token,omitempty"`
}

// PrintPairingQR renders the descriptor as a QR code on w.
func PrintPairingQR(w io.Writer, d PairingDescriptor) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	config := qrterminal.Config{
		Level:     qrterminal.M,
		Writer:    w,
		BlackChar: qrterminal.BLACK,
		WhiteChar: qrterminal.WHITE,
		QuietZone: 2,
	}
	qrterminal.GenerateWithConfig(string(raw), config)
	return nil
}
