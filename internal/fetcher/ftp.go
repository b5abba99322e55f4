package fetcher

import (
	"context"
	"net"
	"net/url"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/biomap-cli/internal/resilience"
)

// FTPOptions configures the FTP fetcher.
type FTPOptions struct {
	Timeout time.Duration
	Retry   resilience.RetryConfig
}

// FTPFetcher downloads release files from FTP mirrors such as
// ftp.uniprot.org and ftp.ebi.ac.uk.
type FTPFetcher struct {
	opts FTPOptions
}

// NewFTPFetcher creates an FTPFetcher.
func NewFTPFetcher(opts FTPOptions) *FTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = resilience.DefaultRetryConfig()
	}
	if opts.Retry.OnRetry == nil {
		opts.Retry.OnRetry = resilience.RetryLogger("ftp", "download")
	}
	return &FTPFetcher{opts: opts}
}

// ftpTarget is a parsed ftp:// URL.
type ftpTarget struct {
	addr     string // host:port
	path     string
	user     string
	password string
}

// parseFTPURL splits an ftp:// URL. Credentials default to anonymous login.
func parseFTPURL(rawURL string) (ftpTarget, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ftpTarget{}, eris.Wrap(err, "ftp: parse url")
	}
	if u.Scheme != "ftp" {
		return ftpTarget{}, eris.Errorf("ftp: expected ftp scheme, got %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		return ftpTarget{}, eris.New("ftp: url has no file path")
	}

	t := ftpTarget{addr: u.Host, path: u.Path, user: "anonymous", password: "anonymous@"}
	if _, _, err := net.SplitHostPort(t.addr); err != nil {
		t.addr = net.JoinHostPort(u.Hostname(), "21")
	}
	if u.User != nil {
		t.user = u.User.Username()
		t.password, _ = u.User.Password()
	}
	return t, nil
}

// Fetch downloads rawURL to dst, retrying dropped connections. When the
// server reports a size, a short transfer is retried as well.
func (f *FTPFetcher) Fetch(ctx context.Context, rawURL, dst string) (int64, error) {
	t, err := parseFTPURL(rawURL)
	if err != nil {
		return 0, err
	}
	return resilience.DoVal(ctx, f.opts.Retry, func(ctx context.Context) (int64, error) {
		return f.fetchOnce(ctx, t, dst)
	})
}

func (f *FTPFetcher) fetchOnce(ctx context.Context, t ftpTarget, dst string) (int64, error) {
	conn, err := ftp.Dial(t.addr, ftp.DialWithTimeout(f.opts.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return 0, resilience.NewTransientError(eris.Wrap(err, "ftp: dial"), 0)
	}
	defer conn.Quit() //nolint:errcheck

	if err := conn.Login(t.user, t.password); err != nil {
		return 0, eris.Wrap(err, "ftp: login")
	}

	size, err := conn.FileSize(t.path)
	if err != nil {
		size = -1 // SIZE is optional
	}

	resp, err := conn.Retr(t.path)
	if err != nil {
		return 0, eris.Wrap(err, "ftp: retrieve")
	}
	n, err := copyToFile(dst, resp)
	_ = resp.Close()
	if err != nil {
		return n, resilience.NewTransientError(err, 0)
	}
	if size >= 0 && n != size {
		return n, resilience.NewTransientError(eris.Errorf("ftp: short transfer of %s: %d of %d bytes", t.path, n, size), 0)
	}

	zap.L().Debug("ftp: fetched", zap.String("addr", t.addr), zap.String("path", t.path), zap.Int64("bytes", n))
	return n, nil
}
