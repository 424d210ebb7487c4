package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"sdetails/internal/app"
	"sdetails/internal/config"
)

func main() {
	if len(os.Args) > 1 && strings.TrimSpace(os.Args[1]) == "completion" {
		os.Exit(runCompletion(os.Args[2:]))
	}

	cfg, err := config.ParseArgs(os.Args[1:])
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			fmt.Fprint(os.Stdout, config.HelpText())
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "argument error: %v\n", err)
		fmt.Fprintln(os.Stderr, "run 'sdetails --help' for usage details")
		os.Exit(2)
	}

	switch cfg.Command {
	case config.CommandDoctor:
		if err := app.RunDoctor(cfg, os.Stdout); err != nil {
			os.Exit(1)
		}
	case config.CommandDryRun:
		if err := app.RunDryRun(cfg, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "sdetails error: %v\n", err)
			os.Exit(1)
		}
	default:
		if err := app.Run(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "sdetails error: %v\n", err)
			os.Exit(1)
		}
	}
}

func runCompletion(args []string) int {
	if len(args) >= 1 && isHelpArg(args[0]) {
		fmt.Fprint(os.Stdout, completionHelpText())
		return 0
	}
	if len(args) > 1 {
		fmt.Fprintln(os.Stderr, "argument error: completion accepts zero or one shell argument (bash or zsh)")
		return 2
	}
	shell := "bash"
	if len(args) == 1 {
		shell = strings.ToLower(strings.TrimSpace(args[0]))
	}
	script, err := completionScript(shell)
	if err != nil {
		fmt.Fprintf(os.Stderr, "argument error: %v\n", err)
		return 2
	}
	fmt.Fprint(os.Stdout, script)
	return 0
}

func isHelpArg(arg string) bool {
	return arg == "-h" || arg == "--help" || arg == "help"
}

func completionHelpText() string {
	return `sdetails completion

Print shell completion script output for sdetails.

Usage:
  sdetails completion [bash|zsh]

Examples:
  sdetails completion bash > ~/.local/share/bash-completion/completions/sdetails
  mkdir -p ~/.zsh/completions
  sdetails completion zsh > ~/.zsh/completions/_sdetails
`
}

func completionScript(shell string) (string, error) {
	switch shell {
	case "bash":
		return `# bash completion for sdetails
_sdetails_completion() {
  local cur prev words cword
  _init_completion || return
  local commands="doctor dry-run completion monitor help"
  if [[ ${cword} -eq 1 ]]; then
    COMPREPLY=( $(compgen -W "${commands}" -- "${cur}") )
    return
  fi
  case "${words[1]}" in
    completion)
      COMPREPLY=( $(compgen -W "bash zsh" -- "${cur}") )
      ;;
    doctor|dry-run|monitor)
      COMPREPLY=( $(compgen -W "--partition --sort --no-color --no-summary --threshold --export --watch --connect-timeout --command-timeout --ssh-config --identity-file --port" -- "${cur}") )
      ;;
    *)
      COMPREPLY=( $(compgen -W "${commands}" -- "${cur}") )
      ;;
  esac
}
complete -F _sdetails_completion sdetails
`, nil
	case "zsh":
		return `#compdef sdetails
_sdetails() {
  local -a commands
  commands=(
    'monitor:collect and render a node table (default)'
    'doctor:run non-mutating preflight checks'
    'dry-run:print planned execution order'
    'completion:print shell completion script'
    'help:show help text'
  )
  if (( CURRENT == 2 )); then
    _describe 'command' commands
    return
  fi
  case "${words[2]}" in
    completion)
      _values 'shell' bash zsh
      ;;
    doctor|dry-run|monitor)
      _values 'flag' --partition --sort --no-color --no-summary --threshold --export --watch --connect-timeout --command-timeout --ssh-config --identity-file --port
      ;;
    *)
      _message 'optional ssh target'
      ;;
  esac
}
_sdetails "$@"
`, nil
	default:
		return "", fmt.Errorf("unsupported shell %q (expected bash or zsh)", shell)
	}
}
