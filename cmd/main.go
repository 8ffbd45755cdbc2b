package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"binaural"
	"binaural/tui"
)

const (
	exitOK      = 0
	exitSession = 1 // 无法建立采集会话
	exitUsage   = 2 // 参数或配置错误
)

func main() {
	os.Exit(run())
}

func run() int {
	// 1. 解析命令行参数
	subject := flag.String("subject", "", "Subject ID (required), used in output file names")
	mac := flag.String("mac-address", "F4:0E:11:75:94:24", "Headset Bluetooth MAC address")
	port := flag.String("port", "/dev/rfcomm0", "Serial (RFCOMM) device bound to the headset")
	configPath := flag.String("config", "", "Optional TOML config file")
	synthetic := flag.Bool("synthetic", false, "Use a synthetic board instead of the headset")
	headless := flag.Bool("headless", false, "Run without the terminal UI, start as soon as the signal is ready")
	logFile := flag.String("log-file", "experiment.log", "Log file (JSON lines, appended)")
	audioDevice := flag.String("audio-device", "", "Substring of the playback device name (default device if empty)")
	flag.Parse()

	if *subject == "" {
		fmt.Fprintln(os.Stderr, "error: --subject is required")
		flag.Usage()
		return exitUsage
	}
	// 编号用于输出文件名，必须在采集开始前检查
	if err := binaural.ValidateSubject(*subject); err != nil {
		fmt.Fprintf(os.Stderr, "error: --subject: %v\n", err)
		return exitUsage
	}

	// 2. 配置
	cfg := binaural.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = binaural.LoadConfig(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return exitUsage
		}
	}
	// 命令行显式给出的参数覆盖配置文件
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mac-address":
			cfg.Board.MACAddress = *mac
		case "port":
			cfg.Board.Port = *port
		}
	})
	if *configPath == "" {
		cfg.Board.MACAddress, cfg.Board.Port = *mac, *port
	}
	if *synthetic {
		cfg.Board.Kind = binaural.BoardSynthetic
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitUsage
	}

	// 3. 日志
	lf, err := binaural.OpenLogFile(*logFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: open log file: %v\n", err)
		return exitUsage
	}
	defer lf.Close()
	logger := binaural.NewLogger(lf, *headless)
	logger.Info().Str("subject", *subject).Str("board", cfg.Board.Kind).Str("port", cfg.Board.Port).
		Str("mac", cfg.Board.MACAddress).Msg("experiment starting")

	// 4. 设备
	board := binaural.NewBoard(cfg.Board, logger)
	var player binaural.AudioPlayer = binaural.SilentPlayer{}
	if mp, err := binaural.NewMalgoPlayer(*audioDevice, logger); err != nil {
		logger.Warn().Err(err).Msg("audio unavailable, stimuli will not be played")
	} else {
		player = mp
	}

	exp := binaural.NewExperiment(cfg, *subject, board, player, logger)
	if err := exp.Open(); err != nil {
		logger.Error().Err(err).Msg("acquisition session")
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		exp.Close()
		if errors.Is(err, binaural.ErrAcquisitionSession) {
			return exitSession
		}
		return exitUsage
	}
	defer exp.Close()

	// 5. 运行
	if *headless {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		report, outcome, err := exp.RunHeadless(ctx)
		if errors.Is(err, context.Canceled) {
			logger.Info().Msg("interrupted before the protocol started")
			return exitOK
		}
		printSummary(report, outcome, err)
		return exitOK
	}

	result, err := tui.Run(exp)
	if err != nil {
		logger.Error().Err(err).Msg("terminal ui")
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	if result.Started && !result.Finalized {
		// 界面异常退出时也要导出
		<-exp.Controller.Done()
		result.Report, result.Err = exp.Finalize()
		result.Finalized = true
	}
	if result.Finalized {
		printSummary(result.Report, result.Outcome, result.Err)
	}
	return exitOK
}

func printSummary(report binaural.Report, outcome binaural.Outcome, err error) {
	if outcome.Err != nil {
		fmt.Printf("Protocol aborted after %d stimuli: %v\n", outcome.Stimuli, outcome.Err)
	}
	fmt.Printf("Exported %d samples\n", report.Rows)
	if report.CSVPath != "" {
		fmt.Println("  " + report.CSVPath)
	}
	if report.EDFPath != "" {
		fmt.Println("  " + report.EDFPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
}
