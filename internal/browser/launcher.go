package browser

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"syscall"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/dgnsrekt/soapstream/internal/config"
)

// Config holds browser launch configuration.
type Config struct {
	Headless   bool
	UserAgent  string
	MediaMuted bool
	Remote     bool
	CDPAddress string
	CDPPort    int
	CDPURL     string
	ExecPath   string
	ProfileDir string
	WindowSize string
}

// ConfigFrom derives launch settings from the runtime config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Headless:   cfg.Headless,
		UserAgent:  cfg.UserAgent,
		MediaMuted: cfg.MediaMuted,
		Remote:     cfg.CDPRemote,
		CDPAddress: cfg.CDPAddress,
		CDPPort:    cfg.CDPPort,
		CDPURL:     cfg.GetCDPURL(),
		ProfileDir: ".configs/chromium",
	}
}

// Launcher owns how browser sessions get a Chromium. In exec mode every
// session starts its own process; in remote mode sessions open tabs in one
// long-running process listening on the CDP port.
type Launcher struct {
	cfg     Config
	cmd     *exec.Cmd
	running bool
}

// NewLauncher creates a new browser launcher with the given config.
func NewLauncher(cfg Config) *Launcher {
	if cfg.WindowSize == "" {
		cfg.WindowSize = "1280,800"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = config.DefaultUserAgent
	}
	if cfg.CDPURL == "" {
		cfg.CDPURL = fmt.Sprintf("http://%s:%d", cfg.CDPAddress, cfg.CDPPort)
	}
	return &Launcher{cfg: cfg}
}

// detectBrowser finds an available Chrome/Chromium binary.
func detectBrowser() (string, error) {
	candidates := []string{"chromium-browser", "chromium", "google-chrome", "google-chrome-stable"}
	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	if runtime.GOOS == "darwin" {
		macPath := "/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"
		if _, err := os.Stat(macPath); err == nil {
			return macPath, nil
		}
	}
	return "", fmt.Errorf("no supported browser found (tried chromium-browser, chromium, google-chrome)")
}

// isPortInUse checks whether a TCP port is already listening.
func isPortInUse(address string, port int) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", address, port), time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// isolationFeatures keeps cross-origin frames in the page's renderer so the
// player frame's network traffic is reported on the main target.
const isolationFeatures = "IsolateOrigins,site-per-process"

// Flags returns the Chromium switches for one session browser. The set
// mirrors chromedp's defaults without enable-automation.
func (l *Launcher) Flags() map[string]any {
	flags := map[string]any{
		"no-first-run":                           true,
		"no-default-browser-check":               true,
		"disable-background-networking":          true,
		"disable-background-timer-throttling":    true,
		"disable-backgrounding-occluded-windows": true,
		"disable-breakpad":                       true,
		"disable-client-side-phishing-detection": true,
		"disable-default-apps":                   true,
		"disable-dev-shm-usage":                  true,
		"disable-hang-monitor":                   true,
		"disable-ipc-flooding-protection":        true,
		"disable-prompt-on-repost":               true,
		"disable-renderer-backgrounding":         true,
		"disable-sync":                           true,
		"metrics-recording-only":                 true,
		"password-store":                         "basic",
		"use-mock-keychain":                      true,
		"disable-blink-features":                 "AutomationControlled",
		"autoplay-policy":                        "no-user-gesture-required",
		"disable-site-isolation-trials":          true,
		"disable-features":                       isolationFeatures,
		"window-size":                            l.cfg.WindowSize,
	}
	if l.cfg.Headless {
		flags["headless"] = "new"
		flags["hide-scrollbars"] = true
	}
	if l.cfg.MediaMuted {
		flags["mute-audio"] = true
	}
	if runtime.GOOS == "linux" {
		flags["no-sandbox"] = true
	}
	return flags
}

// AllocatorOptions assembles exec allocator options for one session browser.
func (l *Launcher) AllocatorOptions() []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{chromedp.UserAgent(l.cfg.UserAgent)}
	if path := l.cfg.ExecPath; path != "" {
		opts = append(opts, chromedp.ExecPath(path))
	} else if path, err := detectBrowser(); err == nil {
		opts = append(opts, chromedp.ExecPath(path))
	}
	for name, value := range l.Flags() {
		opts = append(opts, chromedp.Flag(name, value))
	}
	return opts
}

// Allocator returns a chromedp allocator context for one session. Cancelling
// it terminates the exec-mode process or detaches from the remote browser.
func (l *Launcher) Allocator(parent context.Context) (context.Context, context.CancelFunc) {
	if l.cfg.Remote {
		return chromedp.NewRemoteAllocator(parent, l.cfg.CDPURL)
	}
	return chromedp.NewExecAllocator(parent, l.AllocatorOptions()...)
}

// OwnsBrowser reports whether each session gets a private browser process.
func (l *Launcher) OwnsBrowser() bool { return !l.cfg.Remote }

// Launch starts the shared remote-mode browser unless the CDP port is
// already in use. It is a no-op in exec mode.
func (l *Launcher) Launch(ctx context.Context) error {
	if !l.cfg.Remote {
		return nil
	}
	if isPortInUse(l.cfg.CDPAddress, l.cfg.CDPPort) {
		slog.Info("browser already running, skipping launch",
			"address", l.cfg.CDPAddress, "port", l.cfg.CDPPort)
		slog.Warn("existing browser must run with --disable-site-isolation-trials or player frame responses are not observed")
		return nil
	}

	browserPath := l.cfg.ExecPath
	if browserPath == "" {
		var err error
		if browserPath, err = detectBrowser(); err != nil {
			return err
		}
	}
	slog.Info("detected browser", "path", browserPath)

	if err := os.MkdirAll(l.cfg.ProfileDir, 0o755); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}

	l.cmd = exec.Command(browserPath, l.remoteArgs()...)
	l.cmd.Stdout = os.Stdout
	l.cmd.Stderr = os.Stderr

	if err := l.cmd.Start(); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	l.running = true
	slog.Info("browser process started", "pid", l.cmd.Process.Pid)

	if err := l.waitForCDP(ctx); err != nil {
		l.Stop()
		return fmt.Errorf("waiting for CDP: %w", err)
	}
	slog.Info("CDP endpoint ready",
		"address", l.cfg.CDPAddress, "port", l.cfg.CDPPort)

	return nil
}

// remoteArgs is the command line for the shared remote-mode browser.
func (l *Launcher) remoteArgs() []string {
	args := []string{
		fmt.Sprintf("--remote-debugging-port=%d", l.cfg.CDPPort),
		fmt.Sprintf("--remote-debugging-address=%s", l.cfg.CDPAddress),
		fmt.Sprintf("--user-data-dir=%s", l.cfg.ProfileDir),
		fmt.Sprintf("--user-agent=%s", l.cfg.UserAgent),
		"--no-first-run",
		"--disable-dev-shm-usage",
		"--disable-breakpad",
		"--autoplay-policy=no-user-gesture-required",
		"--disable-site-isolation-trials",
		"--disable-features=" + isolationFeatures,
		fmt.Sprintf("--window-size=%s", l.cfg.WindowSize),
	}
	if l.cfg.Headless {
		args = append(args, "--headless=new")
	}
	if l.cfg.MediaMuted {
		args = append(args, "--mute-audio")
	}
	return append(args, "about:blank")
}

// waitForCDP polls the CDP /json/version endpoint until it responds.
func (l *Launcher) waitForCDP(ctx context.Context) error {
	url := l.cfg.CDPURL + "/json/version"
	deadline := time.After(15 * time.Second)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	client := &http.Client{Timeout: time.Second}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("CDP did not become ready within 15s at %s", url)
		case <-ticker.C:
			resp, err := client.Get(url)
			if err != nil {
				continue
			}
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
	}
}

// Running reports whether this launcher spawned a browser process.
func (l *Launcher) Running() bool {
	return l.running
}

// Stop terminates the browser process with SIGTERM, falling back to SIGKILL.
func (l *Launcher) Stop() {
	if l.cmd == nil || l.cmd.Process == nil {
		return
	}
	slog.Info("stopping browser", "pid", l.cmd.Process.Pid)
	_ = l.cmd.Process.Signal(syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		_ = l.cmd.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("browser stopped gracefully")
	case <-time.After(5 * time.Second):
		slog.Warn("browser did not exit, sending SIGKILL")
		_ = l.cmd.Process.Kill()
		<-done
	}
	l.running = false
}
