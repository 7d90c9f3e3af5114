package security

import (
	"net/http"
	"strings"
	"sync/atomic"

	applog "fintrack/internal/log"
)

var (
	suspiciousPatterns = []string{
		"../", "..\\", ".env", "wp-admin", "phpmyadmin",
		"admin.php", "config.php", ".git", ".ssh",
		"eval(", "javascript:", "<script", "union select",
		"etc/passwd", "cmd.exe",
	}
	// Scripted clients are legitimate callers of the calculators, so only
	// known scanners are flagged.
	scannerAgents = []string{"sqlmap", "nmap", "nikto", "gobuster", "dirb", "masscan", "zgrab"}
	unusualMethods = []string{"TRACE", "TRACK", "DEBUG", "CONNECT"}
)

// Detector flags requests that look like probes. Flagged requests are
// logged and counted but still served.
type Detector struct {
	suspicious atomic.Int64
	clientIP   func(*http.Request) string
}

func NewDetector(clientIP func(*http.Request) string) *Detector {
	if clientIP == nil {
		clientIP = func(r *http.Request) string { return r.RemoteAddr }
	}
	return &Detector{clientIP: clientIP}
}

// Suspicious reports whether r matches a known attack pattern.
func (d *Detector) Suspicious(r *http.Request) (bool, string) {
	path := strings.ToLower(r.URL.Path)
	query := strings.ToLower(r.URL.RawQuery)
	for _, p := range suspiciousPatterns {
		if strings.Contains(path, p) || strings.Contains(query, p) {
			return true, "pattern " + p
		}
	}

	ua := strings.ToLower(r.Header.Get("User-Agent"))
	for _, agent := range scannerAgents {
		if strings.Contains(ua, agent) {
			return true, "user agent " + agent
		}
	}

	for _, m := range unusualMethods {
		if r.Method == m {
			return true, "method " + m
		}
	}

	if len(r.URL.String()) > 2048 {
		return true, "long url"
	}
	if strings.Count(r.Header.Get("X-Forwarded-For"), ",") > 5 {
		return true, "forwarding chain"
	}
	return false, ""
}

func (d *Detector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ok, reason := d.Suspicious(r); ok {
			d.suspicious.Add(1)
			applog.FromContext(r.Context()).WithComponent(applog.ComponentSecurity).WarnContext(r.Context(),
				"Suspicious request",
				applog.FieldClientIP, d.clientIP(r),
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path,
				"reason", reason)
		}
		next.ServeHTTP(w, r)
	})
}

// Count returns how many suspicious requests have been seen.
func (d *Detector) Count() int64 {
	return d.suspicious.Load()
}
