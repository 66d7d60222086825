// Package dsn parses the PostgreSQL connection URI of spec.md §6. It is the
// "external collaborator" spec.md §1 defers to the ecosystem, given a
// concrete, minimal home here.
package dsn

import (
	"fmt"
	"net/url"
	"strings"
)

// SSLMode mirrors wire.SSLMode without importing it, keeping this package
// free of any protocol dependency.
type SSLMode int

const (
	SSLNone SSLMode = iota
	SSLPrefer
	SSLRequire
)

func parseSSLMode(s string) (SSLMode, error) {
	switch strings.ToLower(s) {
	case "", "prefer":
		return SSLPrefer, nil
	case "disable", "none":
		return SSLNone, nil
	case "require":
		return SSLRequire, nil
	default:
		return SSLNone, fmt.Errorf("dsn: unrecognized sslmode %q", s)
	}
}

// Config is the parsed, ready-to-dial form of a connection URI.
type Config struct {
	// Network is "tcp" or "unix", chosen by whether Host is a percent-
	// encoded absolute path (spec.md §6).
	Network string
	// Address is what to pass to net.Dial: "host:port" for tcp, or the
	// decoded socket path for unix.
	Address string

	User     string
	Password string
	Database string

	SSLMode SSLMode

	// ApplicationName, ClientEncoding, Options are recognized startup
	// parameters with special handling; everything else in the query
	// string passes through verbatim (spec.md §9's Open Question
	// resolution, recorded in DESIGN.md).
	ApplicationName string
	ClientEncoding  string
	Options         string

	// StartupParameters holds every key destined for the startup message:
	// user, database (if non-empty), application_name, client_encoding,
	// options, and any unrecognized query-string key, passed through as-is.
	StartupParameters map[string]string
}

const defaultPort = "5432"

// Parse parses a "postgres://" or "postgresql://" connection URI per
// spec.md §6: defaults port=5432 and database=user, detects a Unix-socket
// host via "%2F..." percent-encoding, and forwards unrecognized query
// parameters as startup parameters verbatim.
func Parse(uri string) (*Config, error) {
	// url.Parse rejects a "%2F" escape inside a host, so a socket host has
	// its '%' re-escaped as "%25" first; it then parses to the literal
	// "%2F..." text that the Unix-socket branch below decodes.
	if i := strings.Index(uri, "://"); i >= 0 {
		authEnd := len(uri)
		if j := strings.IndexAny(uri[i+3:], "/?#"); j >= 0 {
			authEnd = i + 3 + j
		}
		hostStart := i + 3 + strings.LastIndex(uri[i+3:authEnd], "@") + 1
		if strings.Contains(uri[hostStart:authEnd], "%2F") {
			uri = uri[:hostStart] + strings.ReplaceAll(uri[hostStart:authEnd], "%", "%25") + uri[authEnd:]
		}
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("dsn: parse: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return nil, fmt.Errorf("dsn: unrecognized scheme %q", u.Scheme)
	}

	cfg := &Config{
		StartupParameters: make(map[string]string),
	}

	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Password, _ = u.User.Password()
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("dsn: missing user")
	}

	hostField := u.Hostname()
	port := u.Port()
	if port == "" {
		port = defaultPort
	}

	if strings.Contains(hostField, "%2F") || strings.Contains(u.Host, "%2F") || strings.HasPrefix(hostField, "/") {
		// Unix-socket transport: the host component is a percent-encoded
		// absolute filesystem path to the socket directory.
		decoded, derr := url.PathUnescape(strings.SplitN(u.Host, ":", 2)[0])
		if derr != nil {
			return nil, fmt.Errorf("dsn: decode unix socket path: %w", derr)
		}
		cfg.Network = "unix"
		cfg.Address = strings.TrimSuffix(decoded, "/") + "/.s.PGSQL." + port
	} else {
		cfg.Network = "tcp"
		cfg.Address = hostField + ":" + port
	}

	cfg.Database = strings.TrimPrefix(u.Path, "/")
	if cfg.Database == "" {
		cfg.Database = cfg.User
	}

	query := u.Query()
	for key, values := range query {
		if len(values) == 0 {
			continue
		}
		val := values[len(values)-1]
		switch key {
		case "application_name":
			cfg.ApplicationName = val
		case "client_encoding":
			if !strings.EqualFold(val, "UTF8") {
				return nil, fmt.Errorf("dsn: client_encoding %q unsupported, only UTF8", val)
			}
			cfg.ClientEncoding = val
		case "options":
			cfg.Options = val
		case "sslmode":
			mode, perr := parseSSLMode(val)
			if perr != nil {
				return nil, perr
			}
			cfg.SSLMode = mode
		default:
			cfg.StartupParameters[key] = val
		}
	}

	cfg.StartupParameters["user"] = cfg.User
	cfg.StartupParameters["database"] = cfg.Database
	if cfg.ApplicationName != "" {
		cfg.StartupParameters["application_name"] = cfg.ApplicationName
	}
	if cfg.ClientEncoding != "" {
		cfg.StartupParameters["client_encoding"] = cfg.ClientEncoding
	}
	if cfg.Options != "" {
		cfg.StartupParameters["options"] = cfg.Options
	}

	return cfg, nil
}

// DetectScheme reports whether uri looks like a postgres connection string,
// without fully parsing it.
func DetectScheme(uri string) bool {
	lower := strings.ToLower(strings.TrimSpace(uri))
	return strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://")
}
