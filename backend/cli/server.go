package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Handler answers one control line with one reply line.
type Handler func(line string) string

func serveConn(c net.Conn, handle Handler) {
	defer c.Close()
	scanner := bufio.NewScanner(c)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 {
			continue
		}
		log.WithField("component", "ctl").Debugf("got '%s'", line)
		reply := strings.ReplaceAll(handle(line), "\n", " ")
		if _, err := c.Write([]byte(reply + "\n")); err != nil {
			log.WithField("component", "ctl").Warnf("write: %v", err)
			return
		}
	}
}

// BindControlSocket listens on a unix socket until ctx is done. A stale
// socket file is removed; a live one means another daemon is running.
func BindControlSocket(ctx context.Context, path string, handle Handler) error {
	if _, err := os.Stat(path); err == nil {
		c, err := net.Dial("unix", path)
		if err != nil {
			os.Remove(path)
		} else {
			c.Close()
			return fmt.Errorf("daemon already running on %s", path)
		}
	}

	l, err := net.Listen("unix", path)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		l.Close()
	}()
	defer os.Remove(path)

	for {
		fd, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		go serveConn(fd, handle)
	}
}
