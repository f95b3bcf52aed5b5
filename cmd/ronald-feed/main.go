package main

import (
	"context"
	"flag"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ronald-ng/internal/serialio"
)

// ronald-feed pushes path transfers at a device for bench work: serving or
// dialing TCP, writing a serial line, or stdout for piping. The path comes
// from a waypoints file or a generated circle, and -count can misdeclare
// the point count to poke the validator.
func main() {
	_ = godotenv.Load()

	var (
		listenAddr = flag.String("listen", "", "Serve the path to TCP connections on this address")
		dialAddr   = flag.String("addr", envOr("RONALD_FEED_ADDR", ""), "Dial this TCP address and write the path")
		serialDev  = flag.String("serial", envOr("RONALD_FEED_SERIAL", ""), "Write the path to this serial device")
		baud       = flag.Int("baud", envIntOr("RONALD_FEED_BAUD", 115200), "Serial baud rate")
		waypoints  = flag.String("waypoints", "", "File of \"lat lon\" waypoints in 1e-5 degree units, one per line")
		center     = flag.String("center", "53.5461,-113.4938", "Generated circle center as lat,lon degrees")
		points     = flag.Int("points", 24, "Generated circle point count")
		radiusM    = flag.Float64("radius-m", 1500, "Generated circle radius in meters")
		count      = flag.Int("count", -1, "Override the declared point count; -1 declares the real count")
		repeat     = flag.Duration("repeat", 0, "Resend interval; 0 sends once")
	)
	flag.Parse()

	path, err := buildPath(*waypoints, *center, *points, *radiusM)
	if err != nil {
		log.Fatalf("path build failed: %v", err)
	}
	msg := formatPath(path, *count)
	log.Printf("path ready points=%d bytes=%d", path.Len(), len(msg))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch {
	case *listenAddr != "":
		ln, err := net.Listen("tcp", *listenAddr)
		if err != nil {
			log.Fatalf("listen failed: %v", err)
		}
		err = serveTCP(ctx, ln, msg, *repeat)
		if err != nil && ctx.Err() == nil {
			log.Fatalf("serve failed: %v", err)
		}
	case *dialAddr != "":
		conn, err := net.DialTimeout("tcp", *dialAddr, 5*time.Second)
		if err != nil {
			log.Fatalf("dial failed: %v", err)
		}
		defer conn.Close()
		log.Printf("connected addr=%s", *dialAddr)
		if err := writeStream(ctx, conn, msg, *repeat); err != nil && ctx.Err() == nil {
			log.Fatalf("send failed: %v", err)
		}
	case *serialDev != "":
		port, err := serialio.Open(*serialDev, *baud)
		if err != nil {
			log.Fatalf("serial open failed: %v", err)
		}
		defer port.Close()
		log.Printf("writing to serial device=%s baud=%d", *serialDev, *baud)
		if err := writeStream(ctx, port, msg, *repeat); err != nil && ctx.Err() == nil {
			log.Fatalf("serial write failed: %v", err)
		}
	default:
		if err := writeStream(ctx, os.Stdout, msg, *repeat); err != nil && ctx.Err() == nil {
			log.Fatalf("write failed: %v", err)
		}
	}
}

// serveTCP writes the message to every connection, resending on the
// repeat interval until the peer goes away.
func serveTCP(ctx context.Context, ln net.Listener, msg []byte, repeat time.Duration) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	log.Printf("serving path listen=%s", ln.Addr())

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		log.Printf("device connected remote=%s", conn.RemoteAddr())
		go func() {
			defer conn.Close()
			if err := writeStream(ctx, conn, msg, repeat); err != nil && ctx.Err() == nil {
				log.Printf("send failed remote=%s err=%v", conn.RemoteAddr(), err)
			}
		}()
	}
}

func writeStream(ctx context.Context, w io.Writer, msg []byte, repeat time.Duration) error {
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if repeat <= 0 {
		return nil
	}
	t := time.NewTicker(repeat)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if _, err := w.Write(msg); err != nil {
				return err
			}
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
