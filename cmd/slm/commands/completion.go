package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion script for slm.

To load completions:

Bash:
  $ slm completion bash > ~/.local/share/bash-completion/completions/slm
  $ source ~/.local/share/bash-completion/completions/slm

Zsh:
  $ slm completion zsh > ~/.zsh/completion/_slm
  $ echo 'fpath=(~/.zsh/completion $fpath)' >> ~/.zshrc
  $ echo 'autoload -Uz compinit && compinit' >> ~/.zshrc

Fish:
  $ slm completion fish > ~/.config/fish/completions/slm.fish

PowerShell:
  PS> slm completion powershell | Out-String | Invoke-Expression
  # To persist, add the output to your PowerShell profile
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	// Completion scripts need no config
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE:              runCompletion,
}

func init() {
	rootCmd.AddCommand(completionCmd)

	registerModelCompletions()
}

func runCompletion(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	switch args[0] {
	case "bash":
		return cmd.Root().GenBashCompletion(out)
	case "zsh":
		return cmd.Root().GenZshCompletion(out)
	case "fish":
		return cmd.Root().GenFishCompletion(out, true)
	case "powershell":
		return cmd.Root().GenPowerShellCompletionWithDesc(out)
	}
	return nil
}

// modelLister is the part of the model store completions need
type modelLister interface {
	modelIDs() ([]string, error)
}

type storeLister struct{}

func (storeLister) modelIDs() ([]string, error) {
	store, err := openStore()
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, r := range store.List() {
		desc := fmt.Sprintf("vocab %d, window %d", r.VocabSize, r.Window)
		if r.Metrics != nil {
			desc += fmt.Sprintf(", perplexity %.2f", r.Metrics.Perplexity)
		}
		ids = append(ids, r.ID+"\t"+desc)
	}
	return ids, nil
}

// completionLister is swapped in tests
var completionLister modelLister = storeLister{}

// validModelIDs completes the first argument with stored model IDs
func validModelIDs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) != 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	ids, err := completionLister.modelIDs()
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}

	var matches []string
	for _, id := range ids {
		if strings.HasPrefix(id, toComplete) {
			matches = append(matches, id)
		}
	}
	return matches, cobra.ShellCompDirectiveNoFileComp
}

// modelFlagCompletion completes --model flags with stored model IDs
func modelFlagCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return validModelIDs(cmd, nil, toComplete)
}

// registerModelCompletions registers model ID completions for arguments
func registerModelCompletions() {
	modelInfoCmd.ValidArgsFunction = validModelIDs
	modelRemoveCmd.ValidArgsFunction = validModelIDs
	evaluateCmd.ValidArgsFunction = func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) == 1 {
			// Corpus path
			return nil, cobra.ShellCompDirectiveDefault
		}
		return validModelIDs(cmd, args, toComplete)
	}
}
