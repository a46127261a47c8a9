package driver

import (
	"net"
	"time"
)

const probeTimeout = 200 * time.Millisecond

// Environment describes where a host driver would run.
type Environment struct {
	// Socket is the hostcached unix socket.
	Socket string
	// CLI marks command-line invocations, which need EnableCLI.
	CLI bool
	// EnableCLI allows command-line invocations to use the daemon.
	EnableCLI bool
}

// Availability reports whether a backend can be used and, if not, why.
type Availability struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// ProbeHost checks whether the host daemon can serve env. It holds no state
// and creates no driver, so backend selection can call it freely.
func ProbeHost(env Environment) Availability {
	info := Availability{Name: HostName}
	if env.Socket == "" {
		info.Reason = "no socket configured"
		return info
	}
	if env.CLI && !env.EnableCLI {
		info.Reason = "disabled for command-line use (set enable_cli)"
		return info
	}
	conn, err := net.DialTimeout("unix", env.Socket, probeTimeout)
	if err != nil {
		info.Reason = "daemon not reachable: " + err.Error()
		return info
	}
	_ = conn.Close()
	info.Available = true
	return info
}

// HostAvailable is ProbeHost reduced to a boolean.
func HostAvailable(env Environment) bool { return ProbeHost(env).Available }
