// Command fxsend walks one or more local paths and streams them to a
// listening fxrecv over TCP.
package main

import (
	"fmt"
	"net"
	"os"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/akamensky/argparse"
	"golang.org/x/net/ipv4"

	"fastxfer/conn"
	"fastxfer/constants"
	"fastxfer/listing"
	"fastxfer/transfer"
)

func main() {
	args := argparse.NewParser("fxsend", "Sends files and directories to a listening fxrecv")

	addr := args.String("a", "address", &argparse.Options{Required: true, Help: "Target host address"})
	port := args.Int("p", "port", &argparse.Options{Required: false, Help: "Target port",
		Default: constants.DefaultPort})
	dscp := args.Int("d", "dscp", &argparse.Options{Required: false, Help: "DSCP field for QoS", Default: 0})
	mptcp := args.Flag("m", "mptcp", &argparse.Options{Help: "Enable Multipath TCP"})
	compress := args.Flag("z", "compress", &argparse.Options{Help: "Compress file contents in flight"})
	minCompress := args.Int("", "min-compress-size", &argparse.Options{Required: false,
		Help: "Only compress files at least this many bytes", Default: 4096})
	paths := args.StringList("f", "file", &argparse.Options{Required: true,
		Help: "Path to send; repeat for multiple files or directories"})

	if err := args.Parse(os.Args); err != nil {
		fmt.Print(args.Usage(err))
		os.Exit(1)
	}

	entries, err := listing.Build(*paths)
	if err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
	if len(entries) == 0 {
		fmt.Println("Nothing to send")
		os.Exit(0)
	}

	debug.SetGCPercent(666)

	target := net.JoinHostPort(*addr, strconv.Itoa(*port))

	dialer := new(net.Dialer)
	dialer.SetMultipathTCP(*mptcp)

	nc, err := dialer.Dial("tcp", target)
	if err != nil {
		fmt.Println("Could not connect to", target, "-", err.Error())
		os.Exit(1)
	}
	if tcpConn, ok := nc.(*net.TCPConn); ok {
		tcpConn.SetNoDelay(true)
	}
	if *dscp != 0 {
		ipv4.NewConn(nc).SetTOS(*dscp)
	}

	fmt.Println("Connected to", target)

	var shouldCompress func(fsPath string, size uint64) bool
	if *compress && !compressionForciblyDisabled() {
		threshold := uint64(*minCompress)
		shouldCompress = func(_ string, size uint64) bool {
			return size >= threshold
		}
	}

	progress := &transfer.Progress{
		Begin: func(virtualPath string, size uint64, compressed bool) {
			if compressed {
				fmt.Printf("-> %s (%d bytes, compressed)\n", virtualPath, size)
			} else {
				fmt.Printf("-> %s (%d bytes)\n", virtualPath, size)
			}
		},
	}

	sender := transfer.NewSender(entries, shouldCompress, progress)
	connection := conn.New(nc, sender)

	begin := time.Now()
	if err := sender.Start(connection); err != nil {
		fmt.Println("Failed to start transfer:", err.Error())
		os.Exit(1)
	}

	for connection.Alive() {
		connection.Update()
	}
	connection.Close()

	if err := sender.LastError(); err != nil {
		fmt.Println("Transfer failed:", err.Error())
		os.Exit(1)
	}
	if !sender.Finished() {
		fmt.Println("Connection closed before transfer completed")
		os.Exit(2)
	}

	fmt.Println("Sent", len(entries), "entries in", time.Since(begin))
}

// compressionForciblyDisabled reports whether FT_DISABLE_COMPRESSION
// overrides -z regardless of what the user passed.
func compressionForciblyDisabled() bool {
	v := os.Getenv("FT_DISABLE_COMPRESSION")
	return v == "1" || v == "ON"
}
