package log

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Xunop/bookworm/internal/config"
)

// The log file should be rotated when it reaches the maximum size
func TestLogRotation(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "bookworm.log")

	rotationLog := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    1, // megabytes
		MaxBackups: 3,
		MaxAge:     1, // days
	}
	defer rotationLog.Close()
	logger := newZap(rotationLog, zapcore.InfoLevel)
	defer logger.Sync()

	oneMegabyte := 1024 * 1024
	rotationLog.Write(make([]byte, oneMegabyte))
	logger.Info("This log should be in a new file", zap.String("archive", "test.epub"))

	fileInfo, err := os.Stat(filename)
	if err != nil {
		t.Fatal(err)
	}
	if fileInfo.Size() > int64(oneMegabyte) {
		t.Fatalf("File size %d is greater than expected %d", fileInfo.Size(), oneMegabyte)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"DEBUG":   zapcore.DebugLevel,
		"warn":    zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"info":    zapcore.InfoLevel,
		"unknown": zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestInit(t *testing.T) {
	opts := config.GetDefaultOptions()
	opts.LogFile = filepath.Join(t.TempDir(), "init.log")
	opts.LogLevel = "warn"

	prev := Logger
	defer func() { Logger = prev }()

	Init(opts)
	if Logger.Core().Enabled(zapcore.InfoLevel) {
		t.Errorf("info should be disabled at warn level")
	}
	if !Logger.Core().Enabled(zapcore.WarnLevel) {
		t.Errorf("warn should be enabled at warn level")
	}
	Warn("spine idref skipped", zap.String("idref", "missing"))
}
