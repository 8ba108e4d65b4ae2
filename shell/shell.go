// SPDX-License-Identifier: Unlicense OR MIT

// Package shell is the interactive command-line interface: a small
// fixed command table, read-execute loop, and enough built-ins
// (meminfo, diskread/diskwrite, netinfo, ping) to exercise every
// other collaborator package from a keyboard and a screen.
package shell

import (
	"fmt"
	"strconv"
	"strings"

	"minikernel/ata"
	"minikernel/console"
	"minikernel/heap"
	"minikernel/kernel"
	"minikernel/keyboard"
	"minikernel/net"
)

const (
	maxCmdLen = 256
	maxArgs   = 16
)

type command struct {
	name        string
	description string
	run         func(con *console.Console, args []string)
}

var commands []command

func init() {
	commands = []command{
		{"help", "Display this help message", cmdHelp},
		{"clear", "Clear the screen", cmdClear},
		{"echo", "Echo text to screen", cmdEcho},
		{"meminfo", "Display memory information", cmdMeminfo},
		{"diskread", "Read a disk sector (diskread <lba>)", cmdDiskRead},
		{"diskwrite", "Write to disk sector (diskwrite <lba> <text>)", cmdDiskWrite},
		{"netinfo", "Display network information", cmdNetinfo},
		{"ping", "Send ICMP ping (ping <ip>)", cmdPing},
		{"reboot", "Reboot the system", cmdReboot},
		{"halt", "Halt the system", cmdHalt},
	}
}

func cmdHelp(con *console.Console, args []string) {
	con.SetColor(console.LightCyan, console.Black)
	fmt.Fprint(con, "\nminikernel shell commands:\n")
	con.SetColor(console.White, console.Black)
	fmt.Fprint(con, "--------------------------\n")
	for _, c := range commands {
		con.SetColor(console.LightGreen, console.Black)
		fmt.Fprintf(con, "  %-12s", c.name)
		con.SetColor(console.White, console.Black)
		fmt.Fprintf(con, " - %s\n", c.description)
	}
	fmt.Fprint(con, "\n")
}

func cmdClear(con *console.Console, args []string) {
	con.Clear()
}

func cmdEcho(con *console.Console, args []string) {
	fmt.Fprintln(con, strings.Join(args, " "))
}

func cmdMeminfo(con *console.Console, args []string) {
	total, used, free := heap.Stats()
	con.SetColor(console.LightCyan, console.Black)
	fmt.Fprint(con, "\nMemory Information:\n")
	con.SetColor(console.White, console.Black)
	fmt.Fprintf(con, "  Heap Total: %d KB\n", total/1024)
	fmt.Fprintf(con, "  Heap Used:  %d KB\n", used/1024)
	fmt.Fprintf(con, "  Heap Free:  %d KB\n\n", free/1024)
}

func cmdDiskRead(con *console.Console, args []string) {
	if len(args) < 1 {
		fmt.Fprint(con, "Usage: diskread <lba>\n")
		return
	}
	drive := ata.Default()
	if drive == nil || !drive.IsPresent() {
		con.SetColor(console.LightRed, console.Black)
		fmt.Fprint(con, "Error: No disk present\n")
		con.SetColor(console.White, console.Black)
		return
	}
	lba, _ := strconv.ParseUint(args[0], 10, 32)
	buf := make([]byte, ata.SectorSize)
	fmt.Fprintf(con, "Reading sector %d...\n", lba)
	if err := drive.ReadSectors(uint32(lba), 1, buf); err != nil {
		con.SetColor(console.LightRed, console.Black)
		fmt.Fprintf(con, "Error: %v\n", err)
		con.SetColor(console.White, console.Black)
		return
	}
	con.SetColor(console.LightGreen, console.Black)
	fmt.Fprintf(con, "\nSector %d contents:\n", lba)
	con.SetColor(console.White, console.Black)
	hexDump(con, buf[:256])
	fmt.Fprint(con, "\n")
}

func hexDump(con *console.Console, data []byte) {
	for i := 0; i < len(data); i += 16 {
		fmt.Fprintf(con, "%04x: ", i)
		row := data[i:min(i+16, len(data))]
		for _, b := range row {
			fmt.Fprintf(con, "%02x ", b)
		}
		fmt.Fprint(con, " ")
		for _, b := range row {
			if b >= 32 && b < 127 {
				fmt.Fprintf(con, "%c", b)
			} else {
				fmt.Fprint(con, ".")
			}
		}
		fmt.Fprint(con, "\n")
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func cmdDiskWrite(con *console.Console, args []string) {
	if len(args) < 2 {
		fmt.Fprint(con, "Usage: diskwrite <lba> <text>\n")
		return
	}
	drive := ata.Default()
	if drive == nil || !drive.IsPresent() {
		con.SetColor(console.LightRed, console.Black)
		fmt.Fprint(con, "Error: No disk present\n")
		con.SetColor(console.White, console.Black)
		return
	}
	lba, _ := strconv.ParseUint(args[0], 10, 32)
	buf := make([]byte, ata.SectorSize)
	text := strings.Join(args[1:], " ")
	n := copy(buf, text)

	fmt.Fprintf(con, "Writing to sector %d...\n", lba)
	if err := drive.WriteSectors(uint32(lba), 1, buf); err != nil {
		con.SetColor(console.LightRed, console.Black)
		fmt.Fprintf(con, "Error: %v\n", err)
		con.SetColor(console.White, console.Black)
		return
	}
	con.SetColor(console.LightGreen, console.Black)
	fmt.Fprintf(con, "Successfully wrote %d bytes\n", n)
	con.SetColor(console.White, console.Black)
}

func cmdNetinfo(con *console.Console, args []string) {
	con.SetColor(console.LightCyan, console.Black)
	fmt.Fprint(con, "\nNetwork Information:\n")
	con.SetColor(console.White, console.Black)
	if !net.Ready() {
		fmt.Fprint(con, "  Status: Not initialized\n\n")
		return
	}
	fmt.Fprint(con, "  Status: Active\n")
	mac := net.MAC()
	fmt.Fprintf(con, "  MAC:    %02x:%02x:%02x:%02x:%02x:%02x\n",
		mac[0], mac[1], mac[2], mac[3], mac[4], mac[5])
	ip := net.IP()
	fmt.Fprintf(con, "  IP:     %d.%d.%d.%d\n\n",
		ip&0xFF, (ip>>8)&0xFF, (ip>>16)&0xFF, (ip>>24)&0xFF)
}

func parseIP(s string) uint32 {
	var a, b, c, d uint32
	fmt.Sscanf(s, "%d.%d.%d.%d", &a, &b, &c, &d)
	return d<<24 | c<<16 | b<<8 | a
}

func cmdPing(con *console.Console, args []string) {
	if len(args) < 1 {
		fmt.Fprint(con, "Usage: ping <ip address>\nExample: ping 10.0.2.2\n")
		return
	}
	if !net.Ready() {
		con.SetColor(console.LightRed, console.Black)
		fmt.Fprint(con, "Error: Network not initialized\n")
		con.SetColor(console.White, console.Black)
		return
	}
	ip := parseIP(args[0])
	fmt.Fprintf(con, "Pinging %d.%d.%d.%d...\n",
		ip&0xFF, (ip>>8)&0xFF, (ip>>16)&0xFF, (ip>>24)&0xFF)

	switch err := net.Ping(ip); err {
	case nil:
		con.SetColor(console.LightGreen, console.Black)
		fmt.Fprint(con, "Ping sent successfully\n")
	default:
		con.SetColor(console.Yellow, console.Black)
		fmt.Fprintf(con, "%v\n", err)
	}
	con.SetColor(console.White, console.Black)

	fmt.Fprint(con, "Waiting for reply...\n")
	for i := 0; i < 100000; i++ {
		net.Poll()
	}
}

// cmdReboot pulses the keyboard controller's reset line, the classic
// real-hardware trick for a warm reboot with no ACPI support. QEMU
// and real chipsets both honor it. If the controller doesn't respond
// (nothing here checks that it did, same as the original), the shell
// just parks the CPU rather than looping forever pulsing the line.
func cmdReboot(con *console.Console, args []string) {
	fmt.Fprint(con, "Rebooting...\n")
	kernel.HW.OutB(0x64, 0xFE)
	kernel.DisableInterrupts()
	for {
		kernel.Halt()
	}
}

func cmdHalt(con *console.Console, args []string) {
	con.SetColor(console.Yellow, console.Black)
	fmt.Fprint(con, "\nSystem halted. You can now power off.\n")
	con.SetColor(console.White, console.Black)
	kernel.DisableInterrupts()
	for {
		kernel.Halt()
	}
}

func parseArgs(line string) []string {
	return strings.Fields(line)
}

func execute(con *console.Console, line string) {
	args := parseArgs(line)
	if len(args) == 0 {
		return
	}
	for _, c := range commands {
		if c.name == args[0] {
			c.run(con, args[1:])
			return
		}
	}
	con.SetColor(console.LightRed, console.Black)
	fmt.Fprintf(con, "Unknown command: %s\n", args[0])
	con.SetColor(console.White, console.Black)
	fmt.Fprint(con, "Type 'help' for a list of commands.\n")
}

func readLine(kb *keyboard.Driver) (string, bool) {
	buf := make([]byte, maxCmdLen)
	n := kb.ReadLine(buf)
	if n < 0 {
		return "", false
	}
	return string(buf[:n]), true
}

// Run drives the read-execute loop forever, reading from kb and
// writing to con. It never returns under normal operation; only
// cmdHalt and cmdReboot, which both end in an infinite hlt loop, stop it.
func Run(con *console.Console, kb *keyboard.Driver) {
	con.SetColor(console.LightGreen, console.Black)
	fmt.Fprint(con, "Welcome to the minikernel shell!\n")
	con.SetColor(console.White, console.Black)
	fmt.Fprint(con, "Type 'help' for a list of commands.\n\n")

	for {
		con.SetColor(console.LightCyan, console.Black)
		fmt.Fprint(con, "minikernel")
		con.SetColor(console.White, console.Black)
		fmt.Fprint(con, "> ")

		line, ok := readLine(kb)
		if !ok {
			// kb.ReadLine already echoed "^C\n" the moment Ctrl+C
			// was pressed; nothing left to print here.
			continue
		}
		execute(con, line)

		if net.Ready() {
			net.Poll()
		}
	}
}
