package capture

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTSPacket(pid int, cc int) []byte {
	p := make([]byte, tsPacketSize)
	p[0] = tsSyncByte
	p[1] = byte(pid >> 8 & 0x1F)
	p[2] = byte(pid & 0xFF)
	p[3] = 0x10 | byte(cc&0x0F) // adaptation field control = payload-only
	return p
}

func TestCapture_HappyPath(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	require.NoError(t, err)
	port := conn.LocalAddr().(*net.UDPAddr).Port
	conn.Close()

	go func() {
		sender, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
		if err != nil {
			return
		}
		defer sender.Close()
		for i := 0; i < 5; i++ {
			_, _ = sender.Write(buildTSPacket(0x100, i))
			time.Sleep(5 * time.Millisecond)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	window, err := Capture(ctx, "udp://127.0.0.1:"+strconv.Itoa(port), Options{
		Timeout:    500 * time.Millisecond,
		MinPackets: 5,
		BufferCap:  1 << 20,
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, window.PacketsReceived(), 1)
	assert.True(t, window.IsValid)
}

func TestCapture_InvalidURL(t *testing.T) {
	_, err := Capture(context.Background(), "not-a-udp-url", Options{Timeout: time.Second, MinPackets: 1})
	assert.Error(t, err)
}

func TestCapture_TimesOutWithNoData(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	require.NoError(t, err)
	port := conn.LocalAddr().(*net.UDPAddr).Port
	conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	window, err := Capture(ctx, "udp://127.0.0.1:"+strconv.Itoa(port), Options{
		Timeout:    100 * time.Millisecond,
		MinPackets: 100,
		BufferCap:  1 << 20,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, window.PacketsReceived())
	assert.False(t, window.IsValid)
}

