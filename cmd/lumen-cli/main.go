// Command lumen-cli is a small smoke-test client exercising the command
// table of spec.md §4.6 against a running lumen server. Adapted from the
// teacher's cmd/test-client/main.go, rewritten against internal/protocol
// instead of hand-formatted RESP strings.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/lumendb/lumen/internal/protocol"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:6379", "lumen server address")
	flag.Parse()

	conn, err := net.DialTimeout("tcp", *addr, 5*time.Second)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	w := protocol.NewWriter(conn)
	var buf protocol.Buffer
	readFrom := make([]byte, 4096)

	send := func(label string, f protocol.Frame) {
		fmt.Printf(">>> %s\n", label)
		if err := w.WriteFrame(f); err != nil {
			fmt.Fprintf(os.Stderr, "write failed: %v\n", err)
			os.Exit(1)
		}
		for {
			got, ok, err := buf.TryDecode()
			if err != nil {
				fmt.Fprintf(os.Stderr, "decode failed: %v\n", err)
				os.Exit(1)
			}
			if ok {
				fmt.Printf("<<< %s\n", describe(got))
				return
			}
			n, err := conn.Read(readFrom)
			if err != nil {
				fmt.Fprintf(os.Stderr, "read failed: %v\n", err)
				os.Exit(1)
			}
			buf.Feed(readFrom[:n])
		}
	}

	send("PING", protocol.NewArray([]byte("PING")))
	send("SET hello world", protocol.NewArray([]byte("SET"), []byte("hello"), []byte("world")))
	send("GET hello", protocol.NewArray([]byte("GET"), []byte("hello")))
	send("KEYS *", protocol.NewArray([]byte("KEYS"), []byte("*")))
	send("INFO replication", protocol.NewArray([]byte("INFO"), []byte("replication")))

	fmt.Println("\nall commands completed")
}

func describe(f protocol.Frame) string {
	switch f.Type {
	case protocol.TypeSimpleString, protocol.TypeError:
		return f.Str
	case protocol.TypeInteger:
		return fmt.Sprintf("%d", f.Num)
	case protocol.TypeBulkString:
		if f.Null {
			return "(nil)"
		}
		return string(f.Bulk)
	case protocol.TypeArray:
		if f.Null {
			return "(nil array)"
		}
		items := make([]string, len(f.Array))
		for i, elem := range f.Array {
			items[i] = describe(elem)
		}
		return fmt.Sprintf("%v", items)
	default:
		return "?"
	}
}
