package http

import (
	"fmt"
	"strings"
)

// Service names one calculator endpoint.
type Service string

const (
	ServiceDailyLimit Service = "daily-limit"
	ServiceAggregate  Service = "aggregate-expenses"
	ServiceProjection Service = "project-balance"
	ServiceAlerts     Service = "alerts"
)

// AllServices lists the calculators in their conventional port order.
var AllServices = []Service{ServiceDailyLimit, ServiceAggregate, ServiceProjection, ServiceAlerts}

// Path is the route the service is mounted on.
func (s Service) Path() string {
	return "/" + string(s)
}

func (s Service) Valid() bool {
	for _, known := range AllServices {
		if s == known {
			return true
		}
	}
	return false
}

// ParseServices turns CALC_SERVICES entries into services. "all" expands to
// every calculator; duplicates are dropped.
func ParseServices(names []string) ([]Service, error) {
	seen := make(map[Service]bool)
	var out []Service
	add := func(s Service) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "all" {
			for _, s := range AllServices {
				add(s)
			}
			continue
		}
		s := Service(n)
		if !s.Valid() {
			return nil, fmt.Errorf("unknown calculator service %q", n)
		}
		add(s)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no calculator services selected")
	}
	return out, nil
}
