package replica

import (
	"bufio"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePrimary accepts one connection and replies with a fixed one-line
// response to everything it reads, recording the commands it saw.
func fakePrimary(t *testing.T) (addr string, seen chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	seen = make(chan string, 8)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		defer ln.Close()
		r := bufio.NewReader(conn)
		for i := 0; i < 4; i++ {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			seen <- line
			// Drain the rest of the multi-bulk frame's lines.
			if line[0] == '*' {
				count := int(line[1] - '0')
				for j := 0; j < count*2; j++ {
					if _, err := r.ReadString('\n'); err != nil {
						return
					}
				}
			}
			conn.Write([]byte("+OK\r\n"))
		}
	}()

	return ln.Addr().String(), seen
}

func TestHandshake_SendsFourSteps(t *testing.T) {
	addr, seen := fakePrimary(t)

	err := Handshake(addr, 6380, nil)
	require.NoError(t, err)

	var commands []string
	for i := 0; i < 4; i++ {
		commands = append(commands, <-seen)
	}
	assert.Contains(t, commands[0], "*1")
	assert.Contains(t, commands[1], "*3")
	assert.Contains(t, commands[2], "*3")
	assert.Contains(t, commands[3], "*3")
}

func TestHandshake_DialFailure(t *testing.T) {
	err := Handshake("127.0.0.1:1", 6380, nil)
	assert.Error(t, err)
}
