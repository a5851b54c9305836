package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/units"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"gopkg.d7z.net/gitlab-drive/pkg/gitlab"
)

type Config struct {
	BaseURL  string `yaml:"base_url"`  // GitLab 实例地址
	ClientID string `yaml:"client_id"` // OAuth 应用 ID
	Scopes   string `yaml:"scopes"`
	Listen   string `yaml:"listen"` // OAuth 回调监听地址

	Timeout     time.Duration `yaml:"timeout"`
	MaxFileSize string        `yaml:"max_file_size"` // 单个文件最大大小

	TokenFile string `yaml:"token_file"`
	Remember  bool   `yaml:"remember"`

	Filter   string `yaml:"filter"` // 浏览时的文件过滤
	PageSize int    `yaml:"page_size"`
}

func LoadConfig(path string) (*Config, error) {
	config := Config{Remember: true}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		decoder := yaml.NewDecoder(f)
		if err := decoder.Decode(&config); err != nil {
			return nil, err
		}
	}
	if config.TokenFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrap(err, "resolve home dir")
		}
		config.TokenFile = filepath.Join(home, ".config", "gitlab-drive", "token.json")
	}
	return &config, nil
}

func (c *Config) ClientOptions() (gitlab.Options, *gitlab.FileTokenStore, error) {
	opts := gitlab.Options{
		BaseURL:    c.BaseURL,
		ClientID:   c.ClientID,
		Scopes:     c.Scopes,
		ListenAddr: c.Listen,
		Timeout:    c.Timeout,
		Remember:   c.Remember,
	}
	if c.MaxFileSize != "" {
		size, err := units.ParseBase2Bytes(c.MaxFileSize)
		if err != nil {
			return opts, nil, errors.Wrap(err, "parse max file size")
		}
		opts.MaxFileSize = size
	}
	store := &gitlab.FileTokenStore{Path: c.TokenFile}
	opts.Store = store
	return opts, store, nil
}
