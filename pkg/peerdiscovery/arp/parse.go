package arp

import (
	"bufio"
	"net"
	"net/netip"
	"strings"
)

// Entry is one complete neighbor table entry
type Entry struct {
	IP  netip.Addr
	MAC net.HardwareAddr
}

// newEntry validates an address pair, dropping incomplete and zero entries
func newEntry(ipStr, macStr string) (Entry, bool) {
	ip, err := netip.ParseAddr(ipStr)
	if err != nil || !ip.Unmap().Is4() {
		return Entry{}, false
	}
	mac, err := net.ParseMAC(macStr)
	if err != nil || isZeroMAC(mac) {
		return Entry{}, false
	}
	return Entry{IP: ip.Unmap(), MAC: mac}, true
}

func isZeroMAC(mac net.HardwareAddr) bool {
	for _, b := range mac {
		if b != 0 {
			return false
		}
	}
	return true
}

// parseProcNetARP parses the /proc/net/arp format:
//
//	IP address       HW type     Flags       HW address            Mask     Device
//	192.168.1.1      0x1         0x2         aa:bb:cc:dd:ee:ff     *        eth0
func parseProcNetARP(data string) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(strings.NewReader(data))

	// Skip header line
	if !scanner.Scan() {
		return entries, scanner.Err()
	}

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 6 {
			continue
		}
		// Flags 0x0 marks an incomplete entry
		if fields[2] == "0x0" {
			continue
		}
		if entry, ok := newEntry(fields[0], fields[3]); ok {
			entries = append(entries, entry)
		}
	}
	return entries, scanner.Err()
}

// parseDarwinARP parses `arp -a` output on macOS:
//
//	? (192.168.1.1) at aa:bb:cc:dd:ee:ff on en0 ifscope [ethernet]
func parseDarwinARP(output string) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(strings.NewReader(output))

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Extract IP address (between parentheses)
		ipStart := strings.Index(line, "(")
		ipEnd := strings.Index(line, ")")
		if ipStart == -1 || ipEnd == -1 || ipStart >= ipEnd {
			continue
		}
		ipStr := line[ipStart+1 : ipEnd]

		// MAC address follows " at "
		_, rest, found := strings.Cut(line, " at ")
		if !found {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			continue
		}
		// macOS drops leading zeros ("0:1b:2:..."), pad them back
		macStr := padMAC(fields[0])
		if entry, ok := newEntry(ipStr, macStr); ok {
			entries = append(entries, entry)
		}
	}
	return entries, scanner.Err()
}

// parseWindowsARP parses `arp -a` output on Windows:
//
//	Interface: 192.168.1.100 --- 0xa
//	  Internet Address      Physical Address      Type
//	  192.168.1.1           aa-bb-cc-dd-ee-ff     dynamic
func parseWindowsARP(output string) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(strings.NewReader(output))

	inTable := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "Interface:") {
			inTable = false
			continue
		}
		if strings.Contains(line, "Internet Address") && strings.Contains(line, "Physical Address") {
			inTable = true
			continue
		}
		if !inTable {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		macStr := strings.ReplaceAll(fields[1], "-", ":")
		if strings.EqualFold(macStr, "ff:ff:ff:ff:ff:ff") {
			continue
		}
		if entry, ok := newEntry(fields[0], macStr); ok {
			entries = append(entries, entry)
		}
	}
	return entries, scanner.Err()
}

func padMAC(mac string) string {
	parts := strings.Split(mac, ":")
	if len(parts) != 6 {
		return mac
	}
	for i, part := range parts {
		if len(part) == 1 {
			parts[i] = "0" + part
		}
	}
	return strings.Join(parts, ":")
}
