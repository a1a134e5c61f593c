package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	cli "github.com/spf13/pflag"

	"aria/internal/ipc"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: aria-ctl [--addr host:port] pause|resume|reload|status")
	os.Exit(2)
}

func main() {
	addr := cli.StringP("addr", "a", "127.0.0.1:8090", "Daemon control address (status only)")
	cli.Parse()

	if cli.NArg() != 1 {
		usage()
	}

	switch cmd := cli.Arg(0); cmd {
	case "pause", "resume", "reload":
		if err := ipc.SendCommand(cmd); err != nil {
			fmt.Println("aria-daemon not running:", err)
			os.Exit(1)
		}
	case "status":
		if err := printStatus(*addr); err != nil {
			fmt.Println("aria-daemon not reachable:", err)
			os.Exit(1)
		}
	default:
		usage()
	}
}

func printStatus(addr string) error {
	resp, err := http.Get("http://" + addr + "/v1/status")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var st map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return err
	}

	out, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
