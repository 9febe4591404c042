package task

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/rovshanmuradov/pumpcurve/internal/types"
)

// Manager loads and parses Task definitions.
type Manager struct {
	logger *zap.Logger
}

// TokenSpec describes a token the simulator lists before running tasks.
type TokenSpec struct {
	Symbol      string `yaml:"symbol"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	ImageURL    string `yaml:"image_url"`
	Curve       string `yaml:"curve"`
}

// Plan is the parsed content of a tasks file.
type Plan struct {
	Tokens []TokenSpec
	Tasks  []*Task
}

// TaskConfig represents the structure of tasks YAML file
type TaskConfig struct {
	Tokens []TokenSpec `yaml:"tokens"`
	Tasks  []struct {
		TaskName     string  `yaml:"task_name"`
		Wallet       string  `yaml:"wallet"`
		Operation    string  `yaml:"operation"`
		Amount       uint64  `yaml:"amount"`
		SlippageBps  *uint64 `yaml:"slippage_bps"`
		MinAmountOut *uint64 `yaml:"min_amount_out"`
		Token        string  `yaml:"token"`
	} `yaml:"tasks"`
}

// NewManager constructs a Manager with the given logger.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{logger: logger.Named("task_manager")}
}

// LoadTasks reads a tasks file from path.
func (m *Manager) LoadTasks(path string) (*Plan, error) {
	if filepath.IsAbs(path) {
		m.logger.Debug("Using absolute path for tasks file", zap.String("path", path))
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return m.Parse(data)
}

// Parse decodes tasks YAML. Invalid tasks are skipped with a warning.
func (m *Manager) Parse(data []byte) (*Plan, error) {
	var config TaskConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if len(config.Tasks) == 0 {
		return nil, fmt.Errorf("no tasks found in configuration")
	}

	tokens := make([]TokenSpec, 0, len(config.Tokens))
	declared := make(map[string]bool, len(config.Tokens))
	for _, spec := range config.Tokens {
		spec.Symbol = strings.TrimSpace(spec.Symbol)
		if spec.Symbol == "" || declared[spec.Symbol] {
			m.logger.Warn("Skipping token with empty or duplicate symbol", zap.String("symbol", spec.Symbol))
			continue
		}
		if spec.Name == "" {
			spec.Name = spec.Symbol
		}
		declared[spec.Symbol] = true
		tokens = append(tokens, spec)
	}

	now := time.Now()
	tasks := make([]*Task, 0, len(config.Tasks))
	for i, taskData := range config.Tasks {
		op, err := parseOperation(taskData.Operation)
		if err != nil {
			m.logger.Warn("Skipping invalid task", zap.String("task_name", taskData.TaskName), zap.Error(err))
			continue
		}

		slippage := types.SlippageConfig{Type: types.SlippageBps, Value: DefaultSlippageBps}
		switch {
		case taskData.MinAmountOut != nil:
			slippage = types.SlippageConfig{Type: types.SlippageFixed, Value: *taskData.MinAmountOut}
		case taskData.SlippageBps != nil:
			slippage.Value = *taskData.SlippageBps
		}

		task := &Task{
			ID:         i,
			TaskName:   taskData.TaskName,
			WalletName: taskData.Wallet,
			Operation:  op,
			Amount:     taskData.Amount,
			Token:      strings.TrimSpace(taskData.Token),
			Slippage:   slippage,
			CreatedAt:  now,
		}

		if err := task.Validate(); err != nil {
			m.logger.Warn("Skipping invalid task",
				zap.String("task_name", task.TaskName),
				zap.String("wallet", task.WalletName),
				zap.String("token", task.Token),
				zap.Error(err))
			continue
		}

		// Токены, на которые ссылаются задачи, листятся даже без явного описания
		if !declared[task.Token] {
			declared[task.Token] = true
			tokens = append(tokens, TokenSpec{Symbol: task.Token, Name: task.Token})
		}

		tasks = append(tasks, task)
	}

	if len(tasks) == 0 {
		return nil, fmt.Errorf("no valid tasks loaded")
	}

	m.logger.Info("Loaded tasks", zap.Int("count", len(tasks)), zap.Int("tokens", len(tokens)))
	return &Plan{Tokens: tokens, Tasks: tasks}, nil
}
