// Package capture implements the UDP Capture component: it joins a
// multicast (or unicast) UDP socket, reads datagrams until a stop condition,
// and hands back a CaptureWindow for the analyzers to consume. It never
// parses the payload; that is the TS Packet Analyzer's job.
package capture

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/tvqos/tvqos/internal/models"
)

// tsPacketSize is the fixed MPEG-2 Transport Stream packet length in bytes.
const tsPacketSize = 188

// tsSyncByte is the expected first byte of every well-formed TS packet.
const tsSyncByte = 0x47

// Options configures a single UDP capture pass.
type Options struct {
	// Timeout bounds each individual socket read. The capture loop stops as
	// soon as one read times out, even if MinPackets has not been reached.
	Timeout time.Duration
	// MinPackets is the datagram count at which the capture loop stops
	// early, before Timeout elapses.
	MinPackets int
	// BufferCap bounds the total payload bytes retained across all
	// datagrams in the window.
	BufferCap int64
}

// Capture joins the UDP endpoint described by rawURL ("udp://host:port") and
// reads datagrams into a CaptureWindow until MinPackets datagrams have
// arrived or a read times out, whichever comes first (§4.2). The socket is
// always closed before Capture returns, including when ctx is cancelled or a
// panic unwinds the call (via the caller's own recover in the scheduler).
func Capture(ctx context.Context, rawURL string, opts Options) (*models.CaptureWindow, error) {
	host, port, err := parseUDPURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", models.ErrURLParse, rawURL, err)
	}

	conn, err := bindAndJoin(host, port)
	if err != nil {
		return nil, fmt.Errorf("binding udp socket for %q: %w", rawURL, err)
	}
	defer conn.Close()

	window := &models.CaptureWindow{
		StartInstant: time.Now(),
	}

	bufCap := opts.BufferCap
	if bufCap <= 0 {
		bufCap = int64(opts.MinPackets) * tsPacketSize * 2
	}

	readBuf := make([]byte, 64*1024)

	for {
		if ctx.Err() != nil {
			break
		}
		if opts.MinPackets > 0 && window.PacketsReceived() >= opts.MinPackets {
			break
		}

		if err := conn.SetReadDeadline(time.Now().Add(opts.Timeout)); err != nil {
			return nil, fmt.Errorf("setting read deadline: %w", err)
		}

		n, _, err := conn.ReadFromUDP(readBuf)
		if err != nil {
			if isTimeout(err) {
				break
			}
			if ctx.Err() != nil {
				break
			}
			return nil, fmt.Errorf("reading udp datagram: %w", err)
		}

		var firstByte byte
		if n > 0 {
			firstByte = readBuf[0]
		}
		window.Datagrams = append(window.Datagrams, models.Datagram{
			ArrivalInstant: time.Now(),
			Bytes:          n,
			FirstByte:      firstByte,
		})

		if window.TotalBytes < bufCap {
			remaining := bufCap - window.TotalBytes
			take := int64(n)
			if take > remaining {
				take = remaining
			}
			window.Payload = append(window.Payload, readBuf[:take]...)
		}
		window.TotalBytes += int64(n)
	}

	window.DurationSec = time.Since(window.StartInstant).Seconds()
	window.IsValid = isValidWindow(window, opts.MinPackets)

	return window, nil
}

// isValidWindow reports whether the window looks like a genuine MPEG-TS
// capture: at least one datagram whose length is a multiple of 188 AND whose
// own leading byte is the sync byte, and enough datagrams to meet the
// configured minimum.
func isValidWindow(w *models.CaptureWindow, minPackets int) bool {
	if w.PacketsReceived() < minPackets {
		return false
	}
	for _, d := range w.Datagrams {
		if d.Bytes > 0 && d.Bytes%tsPacketSize == 0 && d.FirstByte == tsSyncByte {
			return true
		}
	}
	return false
}

func isTimeout(err error) bool {
	var netErr net.Error
	if ne, ok := err.(net.Error); ok {
		netErr = ne
		return netErr.Timeout()
	}
	return false
}

// parseUDPURL extracts host and port from a "udp://host:port" URL. It
// intentionally avoids net/url for the scheme validation, since "udp://"
// hosts are not well-formed authorities when the host is a bare multicast
// address without brackets in all net/url versions.
func parseUDPURL(rawURL string) (host string, port int, err error) {
	const scheme = "udp://"
	if len(rawURL) <= len(scheme) || rawURL[:len(scheme)] != scheme {
		return "", 0, fmt.Errorf("missing udp:// scheme")
	}
	hostPort := rawURL[len(scheme):]

	h, p, err := net.SplitHostPort(hostPort)
	if err != nil {
		return "", 0, fmt.Errorf("splitting host:port: %w", err)
	}
	portNum, err := strconv.Atoi(p)
	if err != nil {
		return "", 0, fmt.Errorf("parsing port %q: %w", p, err)
	}
	return h, portNum, nil
}

// bindAndJoin opens a UDP socket bound to the given port on all interfaces,
// joining the multicast group if host is a multicast address.
func bindAndJoin(host string, port int) (*net.UDPConn, error) {
	ip := net.ParseIP(host)
	if ip != nil && ip.IsMulticast() {
		conn, err := net.ListenMulticastUDP("udp", nil, &net.UDPAddr{IP: ip, Port: port})
		if err != nil {
			return nil, fmt.Errorf("joining multicast group %s: %w", host, err)
		}
		return conn, nil
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: port})
	if err != nil {
		return nil, fmt.Errorf("listening on udp port %d: %w", port, err)
	}
	return conn, nil
}
