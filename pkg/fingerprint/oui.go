package fingerprint

import (
	"bufio"
	"fmt"
	"io"
	"maps"
	"os"
	"regexp"
	"strings"

	fileutil "github.com/projectdiscovery/utils/file"
)

// builtinVendors maps OUI prefixes of common home and office equipment
var builtinVendors = map[string]string{
	// Virtualization
	"00:0C:29": "VMware",
	"00:50:56": "VMware",
	"00:05:69": "VMware",
	"08:00:27": "Oracle VirtualBox",
	"52:54:00": "QEMU Virtual NIC",
	"00:15:5D": "Microsoft Hyper-V",
	"00:1C:42": "Parallels",
	"00:16:3E": "XenSource",

	// Storage
	"00:11:32": "Synology",
	"00:08:9B": "QNAP Systems",
	"24:5E:BE": "QNAP Systems",
	"00:90:A9": "Western Digital",

	// Cameras
	"28:57:BE": "Hikvision",
	"44:19:B6": "Hikvision",
	"C0:56:E3": "Hikvision",
	"3C:EF:8C": "Dahua Technology",
	"00:40:8C": "Axis Communications",

	// Printers
	"00:1B:A9": "Brother Industries",
	"00:80:77": "Brother Industries",
	"3C:2A:F4": "Brother Industries",
	"00:00:48": "Seiko Epson",
	"64:EB:8C": "Seiko Epson",
	"00:1E:8F": "Canon",
	"00:00:AA": "Xerox",

	// TV and streaming
	"B0:A7:37": "Roku",
	"DC:3A:5E": "Roku",
	"B8:E9:37": "Sonos",
	"00:0E:58": "Sonos",
	"5C:AA:FD": "Sonos",
	"00:1E:75": "LG Electronics",
	"00:1D:BA": "Sony",

	// Smart home
	"18:B4:30": "Nest Labs",
	"64:16:66": "Nest Labs",
	"44:65:0D": "Amazon Technologies",
	"F0:27:2D": "Amazon Technologies",
	"74:C2:46": "Amazon Technologies",
	"00:17:88": "Philips Lighting",
	"24:0A:C4": "Espressif",
	"30:AE:A4": "Espressif",

	// Network equipment
	"00:00:0C": "Cisco Systems",
	"00:1B:54": "Cisco Systems",
	"00:18:0A": "Cisco Meraki",
	"24:A4:3C": "Ubiquiti Networks",
	"78:8A:20": "Ubiquiti Networks",
	"FC:EC:DA": "Ubiquiti Networks",
	"50:C7:BF": "TP-Link",
	"14:CC:20": "TP-Link",
	"F4:F2:6D": "TP-Link",
	"00:14:6C": "Netgear",
	"A0:40:A0": "Netgear",
	"00:09:0F": "Fortinet",
	"00:05:85": "Juniper Networks",
	"00:0B:86": "Aruba Networks",
	"4C:5E:0C": "MikroTik",
	"00:1A:92": "ASUSTek",
	"FC:D0:8C": "Huawei Technologies",

	// Phones and tablets
	"3C:22:FB": "Apple",
	"00:1C:B3": "Apple",
	"F0:18:98": "Apple",
	"A4:83:E7": "Apple",
	"3C:06:30": "Apple",
	"00:16:32": "Samsung Electronics",
	"8C:77:12": "Samsung Electronics",
	"28:6C:07": "Xiaomi",
	"F4:F5:D8": "Google",
	"3C:5A:B4": "Google",

	// Servers
	"00:25:90": "Super Micro Computer",
	"00:04:4B": "NVIDIA",

	// Computers
	"00:14:22": "Dell",
	"F8:BC:12": "Dell",
	"00:1B:21": "Intel Corporate",
	"3C:97:0E": "Intel Corporate",
	"3C:D9:2B": "Hewlett Packard",
	"00:17:A4": "Hewlett Packard",
	"B8:27:EB": "Raspberry Pi Foundation",
	"DC:A6:32": "Raspberry Pi Trading",
	"E4:5F:01": "Raspberry Pi Trading",
	"28:CD:C1": "Raspberry Pi Trading",
}

// IEEE oui.txt lines:
//
//	FC-D0-8C   (hex)                Huawei Technologies Co.,Ltd
//	FCD08C     (base 16)            Huawei Technologies Co.,Ltd
var ieeeLine = regexp.MustCompile(`(?i)^\s*([0-9A-F]{2})[-\s:]?([0-9A-F]{2})[-\s:]?([0-9A-F]{2})\s+\((hex|base\s+16)\)\s+(.+?)\s*$`)

// VendorTable maps OUI prefixes to vendor names. It is populated during
// setup and read-only afterwards.
type VendorTable struct {
	prefixes map[string]string
}

// NewVendorTable returns a table holding the built-in prefixes
func NewVendorTable() *VendorTable {
	return &VendorTable{prefixes: maps.Clone(builtinVendors)}
}

// LoadFile merges an IEEE oui.txt file into the table
func (v *VendorTable) LoadFile(path string) (int, error) {
	if !fileutil.FileExists(path) {
		return 0, fmt.Errorf("oui file %s does not exist", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = f.Close()
	}()
	return v.Load(f)
}

// Load merges IEEE oui.txt formatted data into the table and returns the
// number of distinct prefixes read
func (v *VendorTable) Load(r io.Reader) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 16*1024), 256*1024)

	seen := make(map[string]struct{})
	for sc.Scan() {
		m := ieeeLine.FindStringSubmatch(sc.Text())
		if len(m) != 6 {
			continue
		}
		vendor := strings.TrimSpace(m[5])
		if vendor == "" {
			continue
		}
		prefix := strings.ToUpper(m[1] + ":" + m[2] + ":" + m[3])
		v.prefixes[prefix] = vendor
		seen[prefix] = struct{}{}
	}
	return len(seen), sc.Err()
}

// Lookup returns the vendor of a MAC address in any accepted notation
func (v *VendorTable) Lookup(mac string) (string, bool) {
	normalized, ok := NormalizeMAC(mac)
	if !ok {
		return "", false
	}
	vendor, ok := v.prefixes[ouiPrefix(normalized)]
	return vendor, ok
}

// Len returns the number of known prefixes
func (v *VendorTable) Len() int {
	return len(v.prefixes)
}
