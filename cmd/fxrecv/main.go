// Command fxrecv listens for incoming fxsend connections and writes
// whatever they send beneath a root directory, one goroutine per
// accepted connection.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime/debug"
	"strconv"

	"github.com/akamensky/argparse"

	"fastxfer/conn"
	"fastxfer/constants"
	"fastxfer/transfer"
)

func main() {
	args := argparse.NewParser("fxrecv", "Receives files and directories from fxsend")

	bind := args.String("l", "listen", &argparse.Options{Required: false, Help: "Listen on address",
		Default: "0.0.0.0"})
	port := args.Int("p", "port", &argparse.Options{Required: false, Help: "Listening port",
		Default: constants.DefaultPort})
	mptcp := args.Flag("m", "mptcp", &argparse.Options{Help: "Enable Multipath TCP"})
	root := args.String("r", "root", &argparse.Options{Required: false, Help: "Root path for storing files",
		Default: constants.DefaultDestinationDir})

	if err := args.Parse(os.Args); err != nil {
		fmt.Print(args.Usage(err))
		os.Exit(1)
	}

	rootPath, err := filepath.Abs(*root)
	if err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		fmt.Println("Could not create root folder -", err.Error())
		os.Exit(1)
	}

	debug.SetGCPercent(666)

	addr := net.JoinHostPort(*bind, strconv.Itoa(*port))

	lc := new(net.ListenConfig)
	lc.SetMultipathTCP(*mptcp)

	listener, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		fmt.Println("Could not bind listening socket on", addr, "-", err.Error())
		os.Exit(1)
	}
	defer listener.Close()

	fmt.Println("Listening on", addr, "into", rootPath)

	for {
		nc, err := listener.Accept()
		if err != nil {
			fmt.Println("Failed to accept incoming connection -", err.Error())
			continue
		}
		if tcpConn, ok := nc.(*net.TCPConn); ok {
			tcpConn.SetNoDelay(true)
		}

		go handleConnection(nc, rootPath)
	}
}

// handleConnection drives a single accepted peer to completion. Each
// connection gets its own Receiver and its own cooperative update loop;
// nothing here is shared with any other connection.
func handleConnection(nc net.Conn, rootPath string) {
	remote := nc.RemoteAddr().String()
	fmt.Println("New connection from", remote)

	progress := &transfer.Progress{
		Begin: func(virtualPath string, size uint64, compressed bool) {
			if compressed {
				fmt.Printf("%s: <- %s (%d bytes, compressed)\n", remote, virtualPath, size)
			} else {
				fmt.Printf("%s: <- %s (%d bytes)\n", remote, virtualPath, size)
			}
		},
	}

	receiver := transfer.NewReceiver(rootPath, progress)
	connection := conn.New(nc, receiver)

	for connection.Alive() {
		connection.Update()
	}
	connection.Close()

	if err := receiver.LastError(); err != nil {
		fmt.Println(remote, "disconnected with error -", err.Error())
	} else {
		fmt.Println(remote, "disconnected")
	}
}
