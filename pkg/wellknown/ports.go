package wellknown

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	_ "embed"

	"firewall-policy-resolver/internal/model"
)

//go:embed well_known_ports.csv
var wellKnownPortsData string

type ServiceEntry struct {
	Protocol model.Protocol
	Port     int
}

var serviceRegistry map[string][]ServiceEntry

func init() {
	serviceRegistry = make(map[string][]ServiceEntry)
	reader := csv.NewReader(bytes.NewBufferString(wellKnownPortsData))
	reader.TrimLeadingSpace = true
	// Skip header
	if _, err := reader.Read(); err != nil {
		log.Fatalf("Failed to read header from embedded well_known_ports.csv: %v", err)
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("Failed to parse embedded well_known_ports.csv: %v", err)
		}
		if len(record) < 3 {
			continue
		}

		port, err := strconv.Atoi(record[0])
		if err != nil {
			continue
		}

		register(record[1], ServiceEntry{Protocol: model.TCP, Port: port})
		register(record[2], ServiceEntry{Protocol: model.UDP, Port: port})
	}
}

func register(name string, entry ServiceEntry) {
	name = strings.TrimSpace(name)
	if name == "" || name == "N/A" {
		return
	}
	key := strings.ToUpper(name)
	serviceRegistry[key] = append(serviceRegistry[key], entry)
	if name == "domain" {
		serviceRegistry["DNS"] = append(serviceRegistry["DNS"], entry)
	}
}

// GetService returns the port and protocol for a well-known service name.
func GetService(name string) ([]ServiceEntry, bool) {
	entry, ok := serviceRegistry[strings.ToUpper(strings.TrimSpace(name))]
	return entry, ok
}

// PortRange is an inclusive destination port range. Any is set when the
// spec places no restriction on the port.
type PortRange struct {
	Start int
	End   int
	Any   bool
}

// ResolvePort turns a template port spec into a range. Accepted forms are
// "", "any", "22", "8000-8080" and a well-known service name. For service
// names that exist for several protocols, proto picks the entry.
func ResolvePort(spec model.PortSpec, proto model.Protocol) (PortRange, error) {
	s := strings.TrimSpace(string(spec))
	if s == "" || strings.EqualFold(s, "any") || strings.EqualFold(s, "all") {
		return PortRange{Any: true}, nil
	}

	if parts := strings.SplitN(s, "-", 2); len(parts) == 2 {
		start, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
		end, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err1 == nil && err2 == nil {
			if start < 0 || end > 65535 || end < start {
				return PortRange{}, fmt.Errorf("invalid port range %q", s)
			}
			return PortRange{Start: start, End: end}, nil
		}
	}

	if port, err := strconv.Atoi(s); err == nil {
		if port < 0 || port > 65535 {
			return PortRange{}, fmt.Errorf("port %d out of range", port)
		}
		return PortRange{Start: port, End: port}, nil
	}

	entries, ok := GetService(s)
	if !ok {
		return PortRange{}, fmt.Errorf("unknown service %q", s)
	}
	for _, e := range entries {
		if e.Protocol == proto {
			return PortRange{Start: e.Port, End: e.Port}, nil
		}
	}
	return PortRange{Start: entries[0].Port, End: entries[0].Port}, nil
}
