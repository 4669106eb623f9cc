package download

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/jdxcode/netrc"
)

// URSHost is the NASA Earthdata Login host.
const URSHost = "urs.earthdata.nasa.gov"

// ErrNoCredentials is returned when no credentials exist for the host.
var ErrNoCredentials = errors.New("no credentials found")

// Credentials authenticate against Earthdata Login. Username and Password
// are sent only to the login host; Token, when set, is sent as a bearer
// token on every request instead.
type Credentials struct {
	Username string
	Password string
	Token    string
}

// IsZero reports whether no credentials are set.
func (c Credentials) IsZero() bool {
	return c.Username == "" && c.Password == "" && c.Token == ""
}

// String hides secrets.
func (c Credentials) String() string {
	switch {
	case c.Token != "":
		return "token(***)"
	case c.Username != "":
		return c.Username + ":***"
	default:
		return "none"
	}
}

// DefaultNetrcPath returns ~/.netrc, or ~/_netrc on Windows.
func DefaultNetrcPath() string {
	if p := os.Getenv("NETRC"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	name := ".netrc"
	if runtime.GOOS == "windows" {
		name = "_netrc"
	}
	return filepath.Join(home, name)
}

// LoadNetrc reads the login and password for host from a netrc file.
func LoadNetrc(path, host string) (Credentials, error) {
	n, err := netrc.Parse(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("parse netrc %s: %w", path, err)
	}
	m := n.Machine(host)
	if m == nil {
		return Credentials{}, fmt.Errorf("%w for %s in %s", ErrNoCredentials, host, path)
	}
	c := Credentials{Username: m.Get("login"), Password: m.Get("password")}
	if c.Username == "" || c.Password == "" {
		return Credentials{}, fmt.Errorf("%w for %s in %s: login or password empty", ErrNoCredentials, host, path)
	}
	return c, nil
}

// authTransport applies Credentials to outgoing requests.
type authTransport struct {
	creds Credentials
	host  string
	next  http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	switch {
	case t.creds.Token != "":
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.creds.Token)
	case t.creds.Username != "" && strings.EqualFold(req.URL.Hostname(), t.host):
		req = req.Clone(req.Context())
		req.SetBasicAuth(t.creds.Username, t.creds.Password)
	}
	return t.next.RoundTrip(req)
}
