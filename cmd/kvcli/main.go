// Command kvcli is interactive kvserver client.
// Every input line is one request: whitespace separated fields are joined by CRLF,
// so "ADD +key :1" sends "ADD\r\n+key\r\n:1".
package main

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/skipor/kvserver/client"
	"github.com/skipor/kvserver/log"
	"github.com/skipor/kvserver/protocol"
)

const (
	green = "\x1b[32m"
	reset = "\x1b[0m"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintf(os.Stderr, "Usage: %s <ip> <port>\n", os.Args[0])
		os.Exit(2)
	}
	l := log.NewLogger(log.InfoLevel, os.Stderr)
	c, err := client.Dial(net.JoinHostPort(os.Args[1], os.Args[2]))
	if err != nil {
		l.Fatal("Dial error: ", err)
	}
	defer c.Close()

	in := bufio.NewScanner(os.Stdin)
	for in.Scan() {
		message := strings.Join(strings.Fields(in.Text()), protocol.Separator)
		if message == "" {
			continue
		}
		res, err := c.Raw([]byte(message))
		if err != nil {
			l.Fatal("Request error: ", err)
		}
		fmt.Printf("%s%s%s\n", green, res, reset)
	}
	if err := in.Err(); err != nil {
		l.Fatal("Input read error: ", err)
	}
}
