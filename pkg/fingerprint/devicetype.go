package fingerprint

import (
	"net/netip"
	"strings"

	"github.com/projectdiscovery/netscan/pkg/peerdiscovery/common"
	"github.com/projectdiscovery/netscan/pkg/types"
	stringsutil "github.com/projectdiscovery/utils/strings"
)

// Device type labels
const (
	DeviceRouter    = "Router/Gateway"
	DeviceNetwork   = "Network Equipment"
	DeviceMobile    = "Mobile Device"
	DeviceComputer  = "Computer"
	DeviceServer    = "Server"
	DevicePrinter   = "Printer"
	DeviceCamera    = "Security Camera"
	DeviceMedia     = "Smart TV/Streaming"
	DeviceSmartHome = "Smart Home Device"
	DeviceStorage   = "Network Storage"
	DeviceVirtual   = "Virtual Machine"
	DeviceInfra     = "Infrastructure Device"
	DeviceTemporary = "Mobile/Temporary Device"
	DeviceGeneric   = "Generic Device"
)

const (
	gatewayOctetLow   = 1
	gatewayOctetHigh  = 254
	infraOctetCeiling = 50
	dynamicOctetFloor = 200
)

// RuleInput is what a device type rule sees
type RuleInput struct {
	Addr     netip.Addr
	Hostname string
	Vendor   string
}

// Rule maps a predicate to a device type label
type Rule struct {
	Name  string
	Label string
	Match func(in RuleInput) bool
}

// DeviceTypeRules is evaluated top to bottom; the first match wins.
// Address rules come first, then vendor rules, then hostname rules.
// Unmatched hosts get a label from their last octet (see fallbackLabel).
var DeviceTypeRules = []Rule{
	{
		Name:  "gateway-address",
		Label: DeviceRouter,
		Match: func(in RuleInput) bool {
			octet := common.LastOctet(in.Addr)
			return octet == gatewayOctetLow || octet == gatewayOctetHigh
		},
	},

	vendorRule("vendor-virtual", DeviceVirtual, "vmware", "virtualbox", "qemu", "parallels", "xensource", "hyper-v"),
	vendorRule("vendor-storage", DeviceStorage, "synology", "qnap", "western digital", "netapp", "buffalo", "drobo"),
	vendorRule("vendor-camera", DeviceCamera, "hikvision", "dahua", "axis communications", "reolink", "amcrest", "arlo"),
	vendorRule("vendor-printer", DevicePrinter, "brother", "epson", "canon", "xerox", "lexmark", "kyocera", "ricoh"),
	vendorRule("vendor-media", DeviceMedia, "roku", "sonos", "lg electronics", "sony", "vizio", "tcl"),
	vendorRule("vendor-smarthome", DeviceSmartHome, "nest labs", "philips lighting", "signify", "amazon", "espressif", "tuya", "ecobee"),
	vendorRule("vendor-network", DeviceNetwork, "cisco", "ubiquiti", "tp-link", "netgear", "fortinet", "juniper", "aruba", "mikrotik", "asustek", "d-link", "linksys", "huawei"),
	vendorRule("vendor-mobile", DeviceMobile, "apple", "samsung", "xiaomi", "oneplus", "motorola", "google"),
	vendorRule("vendor-server", DeviceServer, "super micro", "supermicro", "nvidia"),
	vendorRule("vendor-computer", DeviceComputer, "dell", "intel", "lenovo", "hewlett", "raspberry", "acer"),

	hostnameRule("hostname-router", DeviceRouter, "router", "gateway", "openwrt", "pfsense", "opnsense", "fritz"),
	hostnameRule("hostname-network", DeviceNetwork, "switch", "access-point", "unifi", "ubnt", "mikrotik", "firewall"),
	hostnameRule("hostname-printer", DevicePrinter, "printer", "print", "laserjet", "officejet", "epson", "brother"),
	hostnameRule("hostname-camera", DeviceCamera, "camera", "ipcam", "nvr", "dvr", "hikvision"),
	hostnameRule("hostname-media", DeviceMedia, "roku", "chromecast", "appletv", "apple-tv", "firetv", "smarttv", "sonos"),
	hostnameRule("hostname-storage", DeviceStorage, "nas", "diskstation", "synology", "qnap", "truenas", "storage"),
	hostnameRule("hostname-virtual", DeviceVirtual, "vm-", "virtual", "docker", "proxmox-vm"),
	hostnameRule("hostname-server", DeviceServer, "server", "srv", "proxmox", "esxi"),
	hostnameRule("hostname-mobile", DeviceMobile, "iphone", "ipad", "android", "galaxy", "pixel", "phone"),
	hostnameRule("hostname-smarthome", DeviceSmartHome, "echo", "alexa", "nest", "hue", "homepod", "thermostat", "esp32", "esp8266", "tasmota", "shelly"),
	hostnameRule("hostname-computer", DeviceComputer, "desktop", "laptop", "macbook", "imac", "workstation", "pc"),
}

func vendorRule(name, label string, keywords ...string) Rule {
	return Rule{
		Name:  name,
		Label: label,
		Match: func(in RuleInput) bool {
			return matchesAny(in.Vendor, keywords)
		},
	}
}

func hostnameRule(name, label string, keywords ...string) Rule {
	return Rule{
		Name:  name,
		Label: label,
		Match: func(in RuleInput) bool {
			return matchesAny(in.Hostname, keywords)
		},
	}
}

// matchesAny does a case-insensitive substring match, sentinels never match
func matchesAny(value string, keywords []string) bool {
	if value == "" || value == types.Unknown || value == types.UnknownVendor {
		return false
	}
	return stringsutil.ContainsAny(strings.ToLower(value), keywords...)
}

// ClassifyDevice returns the device type label for a host
func ClassifyDevice(addr netip.Addr, hostname, vendor string) string {
	in := RuleInput{Addr: addr, Hostname: hostname, Vendor: vendor}
	for _, rule := range DeviceTypeRules {
		if rule.Match(in) {
			return rule.Label
		}
	}
	return fallbackLabel(addr)
}

// fallbackLabel guesses from where the address sits in a typical /24:
// static infrastructure low, DHCP pools high
func fallbackLabel(addr netip.Addr) string {
	octet := common.LastOctet(addr)
	switch {
	case octet < infraOctetCeiling:
		return DeviceInfra
	case octet > dynamicOctetFloor:
		return DeviceTemporary
	default:
		return DeviceGeneric
	}
}
