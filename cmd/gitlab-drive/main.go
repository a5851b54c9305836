package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"gopkg.d7z.net/gitlab-drive/pkg/gitlab"
	"gopkg.d7z.net/gitlab-drive/pkg/picker"
)

var (
	configPath = ""
	debug      = false
)

func init() {
	flag.StringVar(&configPath, "conf", configPath, "config file path")
	flag.BoolVar(&debug, "debug", debug, "debug mode")
	flag.Parse()
}

func main() {
	call := logInject()
	defer call()
	config, err := LoadConfig(configPath)
	if err != nil {
		log.Fatalf("fail to load config file: %v", err)
	}
	opts, store, err := config.ClientOptions()
	if err != nil {
		log.Fatalln(err)
	}
	client, err := gitlab.New(opts)
	if err != nil {
		log.Fatalln(err)
	}
	if token, err := store.Load(); err == nil && token != "" {
		client.SetToken(token)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	args := flag.Args()
	if len(args) == 0 {
		usage()
	}
	switch args[0] {
	case "login":
		if err := client.Login(ctx); err != nil {
			log.Fatalln(err)
		}
		user, err := client.CurrentUser(ctx)
		if err != nil {
			log.Fatalln(err)
		}
		fmt.Printf("signed in as %s <%s>\n", user.Username, user.Email)
	case "logout":
		client.Logout()
		fmt.Println("signed out")
	case "get":
		if len(args) < 2 {
			usage()
		}
		file, err := client.GetFile(ctx, args[1])
		if err != nil {
			log.Fatalln(err)
		}
		if len(args) > 2 {
			if err := os.WriteFile(args[2], []byte(file.Payload.Content), 0o644); err != nil {
				log.Fatalln(err)
			}
		} else {
			fmt.Print(file.Payload.Content)
		}
	case "put":
		if len(args) < 3 {
			usage()
		}
		if err := put(ctx, client, args[1], args[2]); err != nil {
			log.Fatalln(err)
		}
	case "browse":
		p, err := newPicker(client, config)
		if err != nil {
			log.Fatalln(err)
		}
		id, err := p.PickFile(ctx)
		if err != nil {
			log.Fatalln(err)
		}
		fmt.Println(id)
	default:
		usage()
	}
}

// put uploads a local file into a repository folder, prompting for the
// commit message and for replace confirmation the way the editor's
// dialogs do.
func put(ctx context.Context, client *gitlab.Client, local, folderID string) error {
	data, err := os.ReadFile(local)
	if err != nil {
		return err
	}
	name := filepath.Base(local)
	prompt := picker.DefaultPrompter()
	message, err := prompt.Input(fmt.Sprintf("Commit message for %s", name))
	if err != nil {
		return err
	}
	confirm := func(id string) bool {
		replace, err := prompt.Confirm(fmt.Sprintf("Replace %s?", id), false)
		return err == nil && replace
	}
	file, err := client.InsertFile(ctx, folderID, name,
		gitlab.Payload{Kind: gitlab.PayloadText, Content: string(data)}, message, confirm)
	if err != nil {
		return err
	}
	fmt.Println(file.Meta.ID())
	return nil
}

func newPicker(client *gitlab.Client, config *Config) (*picker.Picker, error) {
	opts := make([]picker.Option, 0, 2)
	if config.Filter != "" {
		opts = append(opts, picker.WithFilter(config.Filter))
	}
	if config.PageSize > 0 {
		opts = append(opts, picker.WithPageSize(config.PageSize))
	}
	return picker.New(client, opts...)
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [-conf config.yaml] [-debug] <login|logout|get id [out]|put file folder-id|browse>\n",
		filepath.Base(os.Args[0]))
	os.Exit(2)
}

func logInject() func() {
	atom := zap.NewAtomicLevel()
	if debug {
		atom.SetLevel(zap.DebugLevel)
	} else {
		atom.SetLevel(zap.InfoLevel)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = atom

	logger, _ := cfg.Build()
	zap.ReplaceGlobals(logger)
	zap.L().Debug("debug enabled")
	return func() {
		if err := logger.Sync(); err != nil {
			fmt.Println(err)
		}
	}
}
