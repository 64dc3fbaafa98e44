package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sojinmm/lux-sub007/internal/config"
	"github.com/sojinmm/lux-sub007/internal/daemon"
	"github.com/sojinmm/lux-sub007/internal/logger"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the lux daemon",
	Long: `Start the lux daemon in the foreground. The daemon runs the
configured agents and coordinators until it receives SIGINT or SIGTERM.`,
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		if err := config.ValidateLogLevel(logLevel); err != nil {
			return err
		}
		cfg.Logging.Level = logLevel
	}

	pidFile := pidFilePath(cfg.DataDir)
	if pid, running := readPID(pidFile); running {
		return fmt.Errorf("daemon is already running (pid %d)", pid)
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer log.Close()

	d, err := daemon.New(cfg, log)
	if err != nil {
		return err
	}
	if err := d.Start(); err != nil {
		return err
	}

	if err := writePID(pidFile); err != nil {
		log.Zerolog().Warn().Err(err).Str("path", pidFile).Msg("Failed to write pid file")
	}
	defer os.Remove(pidFile)

	d.Wait()
	return nil
}

func pidFilePath(dataDir string) string {
	if dataDir != "" {
		return filepath.Join(dataDir, "luxd.pid")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "luxd.pid")
	}
	return filepath.Join(home, ".lux", "luxd.pid")
}

func writePID(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
}

// readPID reads the pid file and reports whether that process is still
// alive.
func readPID(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil || pid <= 0 {
		return 0, false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return pid, false
	}
	return pid, process.Signal(syscall.Signal(0)) == nil
}
