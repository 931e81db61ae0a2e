// Command pl2303cat bridges a PL2303 serial line to stdin/stdout.
//
// Bytes read from stdin are transferred to the device; bytes received from
// the device are written to stdout. The tool runs until interrupted.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"github.com/serialio/go-pl2303/gousb"
	"github.com/serialio/go-pl2303/logger"
	"github.com/serialio/go-pl2303/pl2303"
)

const readyTimeout = 10 * time.Second

// Main is the principal function for the binary, wrapped only by `main` for convenience.
func Main() error {
	if err := initConfig(); err != nil {
		return err
	}

	logLevel, err := configuredLogLevel()
	if err != nil {
		return err
	}
	log := logger.NewSlog(logLevel, false)

	transport := gousb.NewTransport()
	defer transport.Close()

	cfg, err := pl2303.NewConfig(
		pl2303.WithPort(viper.GetInt("port")),
		pl2303.WithBaudRate(viper.GetInt("baud")),
		pl2303.WithLogger(log),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sess, err := pl2303.Open(ctx, transport, cfg)
	if err != nil {
		return err
	}
	defer sess.Close()

	sess.OnData(func(p []byte) {
		_, _ = os.Stdout.Write(p)
	})
	sess.OnError(func(err error) {
		log.Error("transfer error", "error", err)
	})

	if viper.GetBool("status") {
		sess.OnStatus(func(p []byte) {
			status, ok := pl2303.ParseModemStatus(p)
			if !ok {
				return
			}
			log.Info("modem status",
				"cts", status.CTS, "dsr", status.DSR, "ri", status.RI, "dcd", status.DCD)
		})
	}

	readyCtx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()
	if err := sess.WaitReady(readyCtx); err != nil {
		return fmt.Errorf("device bring-up failed: %w", err)
	}

	log.Info("line open", "baudRate", sess.NegotiatedBaudRate())

	go forwardStdin(sess, log)

	<-ctx.Done()
	log.Info("caught interrupt; closing session")

	return sess.Close()
}

// forwardStdin copies stdin to the serial line until stdin is exhausted or
// the session closes.
func forwardStdin(sess *pl2303.Session, log logger.Logger) {
	buf := make([]byte, 4096)
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			if serr := sess.Send(buf[:n]); serr != nil {
				if errors.Is(serr, pl2303.ErrSessionClosed) {
					return
				}
				log.Error("send failed", "error", serr)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Error("stdin read failed", "error", err)
			}
			return
		}
	}
}

func main() {
	if err := Main(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Execution failed: %v\n", err)
		os.Exit(1)
	}
}
