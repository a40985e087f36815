package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	kservice "github.com/kardianos/service"
)

// program 以系统服务方式运行时的生命周期
type program struct {
	configPath string
	cancel     context.CancelFunc
	done       chan error
}

func (p *program) Start(s kservice.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan error, 1)

	go func() {
		p.done <- run(ctx, p.configPath)
	}()
	return nil
}

func (p *program) Stop(s kservice.Service) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()

	select {
	case err := <-p.done:
		return err
	case <-time.After(60 * time.Second):
		return errors.New("timeout waiting for service to stop")
	}
}

func serviceConfig(configPath string) *kservice.Config {
	return &kservice.Config{
		Name:        "maskkit",
		DisplayName: "MaskKit Segmentation Service",
		Description: "Promptable image segmentation HTTP service",
		Arguments:   []string{"-service", "run", "-config", configPath},
	}
}

// controlService install/uninstall/start/stop/restart 交给系统服务管理器，run 在前台运行
func controlService(action, configPath string) error {
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}

	prg := &program{configPath: abs}
	s, err := kservice.New(prg, serviceConfig(abs))
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	if action == "run" {
		return s.Run()
	}
	if err := kservice.Control(s, action); err != nil {
		return fmt.Errorf("failed to %s service: %w", action, err)
	}
	fmt.Printf("Service %s succeeded\n", action)
	return nil
}
