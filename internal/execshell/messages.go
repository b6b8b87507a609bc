package execshell

import (
	"fmt"
	"strings"
)

type messageStage int

const (
	messageStageStart messageStage = iota
	messageStageSuccess
	messageStageFailure
	messageStageExecutionFailure
)

const (
	genericStartTemplateConstant            = "Running %s"
	genericSuccessTemplateConstant          = "Completed %s"
	genericFailureTemplateConstant          = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	commandLabelTemplateConstant            = "%s%s"
	commandWithArgumentsTemplateConstant    = "%s %s"
	workingDirectorySuffixTemplateConstant  = " (in %s)"
	commandArgumentsJoinSeparatorConstant   = " "
	standardErrorSuffixTemplateConstant     = ": %s"
	unknownFailureMessageConstant           = "unknown error"
	emptyStringConstant                     = ""
	defaultWorkingDirectoryLabelConstant    = "current directory"
	fallbackUnknownValueLabelConstant       = "unknown"
	flagPrefixConstant                      = "-"
)

const (
	gitCloneSubcommandNameConstant    = "clone"
	gitConfigSubcommandNameConstant   = "config"
	gitPullSubcommandNameConstant     = "pull"
	gitPushSubcommandNameConstant     = "push"
	gitAddSubcommandNameConstant      = "add"
	gitCommitSubcommandNameConstant   = "commit"
	gitResetSubcommandNameConstant    = "reset"
	gitRevParseSubcommandNameConstant = "rev-parse"
	gitMergeSubcommandNameConstant    = "merge"
	gitBranchFlagConstant             = "--branch"
	gitMessageFlagConstant            = "-m"
	gitAbortFlagConstant              = "--abort"
)

const (
	gitCloneStartTemplateConstant                 = "Cloning %s (branch %s) into %s"
	gitCloneSuccessTemplateConstant               = "Cloned %s (branch %s) into %s"
	gitCloneFailureTemplateConstant               = "Failed to clone %s (branch %s) into %s (exit code %d%s)"
	gitCloneExecutionFailureTemplateConstant      = "Unable to clone %s (branch %s) into %s: %s"
	gitConfigStartTemplateConstant                = "Setting %s in %s"
	gitConfigSuccessTemplateConstant              = "Set %s in %s"
	gitConfigFailureTemplateConstant              = "Failed to set %s in %s (exit code %d%s)"
	gitConfigExecutionFailureTemplateConstant     = "Unable to set %s in %s: %s"
	gitPullStartTemplateConstant                  = "Pulling %s from %s into %s"
	gitPullSuccessTemplateConstant                = "Pulled %s from %s into %s"
	gitPullFailureTemplateConstant                = "Failed to pull %s from %s into %s (exit code %d%s)"
	gitPullExecutionFailureTemplateConstant       = "Unable to pull %s from %s into %s: %s"
	gitPushStartTemplateConstant                  = "Pushing %s to %s from %s"
	gitPushSuccessTemplateConstant                = "Pushed %s to %s from %s"
	gitPushFailureTemplateConstant                = "Failed to push %s to %s from %s (exit code %d%s)"
	gitPushExecutionFailureTemplateConstant       = "Unable to push %s to %s from %s: %s"
	gitAddStartTemplateConstant                   = "Staging %s in %s"
	gitAddSuccessTemplateConstant                 = "Staged %s in %s"
	gitAddFailureTemplateConstant                 = "Failed to stage %s in %s (exit code %d%s)"
	gitAddExecutionFailureTemplateConstant        = "Unable to stage %s in %s: %s"
	gitCommitStartTemplateConstant                = "Creating commit in %s with message %q"
	gitCommitSuccessTemplateConstant              = "Created commit in %s with message %q"
	gitCommitFailureTemplateConstant              = "Failed to create commit in %s with message %q (exit code %d%s)"
	gitCommitExecutionFailureTemplateConstant     = "Unable to create commit in %s with message %q: %s"
	gitResetStartTemplateConstant                 = "Resetting %s to %s"
	gitResetSuccessTemplateConstant               = "Reset %s to %s"
	gitResetFailureTemplateConstant               = "Failed to reset %s to %s (exit code %d%s)"
	gitResetExecutionFailureTemplateConstant      = "Unable to reset %s to %s: %s"
	gitRevisionStartTemplateConstant              = "Resolving %s in %s"
	gitRevisionSuccessTemplateConstant            = "Resolved %s in %s"
	gitRevisionFailureTemplateConstant            = "Failed to resolve %s in %s (exit code %d%s)"
	gitRevisionExecutionFailureTemplateConstant   = "Unable to resolve %s in %s: %s"
	gitMergeAbortStartTemplateConstant            = "Aborting merge in %s"
	gitMergeAbortSuccessTemplateConstant          = "Aborted merge in %s"
	gitMergeAbortFailureTemplateConstant          = "Failed to abort merge in %s (exit code %d%s)"
	gitMergeAbortExecutionFailureTemplateConstant = "Unable to abort merge in %s: %s"
)

// CommandMessageFormatter builds human-readable messages for command lifecycle events.
type CommandMessageFormatter struct{}

// BuildStartedMessage formats the message describing a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageStart)
}

// BuildSuccessMessage formats the message describing a completed command with a zero exit code.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageSuccess)
}

// BuildFailureMessage formats the message describing a command that returned a non-zero exit code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageFailure)
}

// BuildExecutionFailureMessage formats the message describing an unexpected execution failure.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return formatter.buildMessage(command, ExecutionResult{}, failure, messageStageExecutionFailure)
}

type stageTemplates struct {
	start            string
	success          string
	failure          string
	executionFailure string
}

func (formatter CommandMessageFormatter) buildMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	if command.Name != CommandGit || len(command.Details.Arguments) == 0 {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	arguments := command.Details.Arguments
	workingDirectory := formatter.describeWorkingDirectory(command)
	switch strings.TrimSpace(arguments[0]) {
	case gitCloneSubcommandNameConstant:
		positional := formatter.positionalArguments(arguments[1:], gitBranchFlagConstant)
		repositoryURL := formatter.ensureValue(formatter.argumentAtIndex(positional, 0))
		destination := formatter.ensureValue(formatter.argumentAtIndex(positional, 1))
		branch := formatter.ensureValue(findFlagValue(arguments, gitBranchFlagConstant))
		return formatter.render(stage, result, failure, stageTemplates{
			start:            gitCloneStartTemplateConstant,
			success:          gitCloneSuccessTemplateConstant,
			failure:          gitCloneFailureTemplateConstant,
			executionFailure: gitCloneExecutionFailureTemplateConstant,
		}, repositoryURL, branch, destination)
	case gitConfigSubcommandNameConstant:
		key := formatter.ensureValue(formatter.argumentAtIndex(formatter.positionalArguments(arguments[1:]), 0))
		return formatter.render(stage, result, failure, stageTemplates{
			start:            gitConfigStartTemplateConstant,
			success:          gitConfigSuccessTemplateConstant,
			failure:          gitConfigFailureTemplateConstant,
			executionFailure: gitConfigExecutionFailureTemplateConstant,
		}, key, workingDirectory)
	case gitPullSubcommandNameConstant:
		positional := formatter.positionalArguments(arguments[1:])
		remote := formatter.ensureValue(formatter.argumentAtIndex(positional, 0))
		branch := formatter.ensureValue(formatter.argumentAtIndex(positional, 1))
		return formatter.render(stage, result, failure, stageTemplates{
			start:            gitPullStartTemplateConstant,
			success:          gitPullSuccessTemplateConstant,
			failure:          gitPullFailureTemplateConstant,
			executionFailure: gitPullExecutionFailureTemplateConstant,
		}, branch, remote, workingDirectory)
	case gitPushSubcommandNameConstant:
		positional := formatter.positionalArguments(arguments[1:])
		remote := formatter.ensureValue(formatter.argumentAtIndex(positional, 0))
		reference := formatter.ensureValue(formatter.argumentAtIndex(positional, 1))
		return formatter.render(stage, result, failure, stageTemplates{
			start:            gitPushStartTemplateConstant,
			success:          gitPushSuccessTemplateConstant,
			failure:          gitPushFailureTemplateConstant,
			executionFailure: gitPushExecutionFailureTemplateConstant,
		}, reference, remote, workingDirectory)
	case gitAddSubcommandNameConstant:
		target := formatter.ensureValue(strings.Join(formatter.positionalArguments(arguments[1:]), commandArgumentsJoinSeparatorConstant))
		return formatter.render(stage, result, failure, stageTemplates{
			start:            gitAddStartTemplateConstant,
			success:          gitAddSuccessTemplateConstant,
			failure:          gitAddFailureTemplateConstant,
			executionFailure: gitAddExecutionFailureTemplateConstant,
		}, target, workingDirectory)
	case gitCommitSubcommandNameConstant:
		commitMessage := formatter.ensureValue(findFlagValue(arguments, gitMessageFlagConstant))
		return formatter.render(stage, result, failure, stageTemplates{
			start:            gitCommitStartTemplateConstant,
			success:          gitCommitSuccessTemplateConstant,
			failure:          gitCommitFailureTemplateConstant,
			executionFailure: gitCommitExecutionFailureTemplateConstant,
		}, workingDirectory, commitMessage)
	case gitResetSubcommandNameConstant:
		revision := formatter.ensureValue(formatter.argumentAtIndex(formatter.positionalArguments(arguments[1:]), 0))
		return formatter.render(stage, result, failure, stageTemplates{
			start:            gitResetStartTemplateConstant,
			success:          gitResetSuccessTemplateConstant,
			failure:          gitResetFailureTemplateConstant,
			executionFailure: gitResetExecutionFailureTemplateConstant,
		}, workingDirectory, revision)
	case gitRevParseSubcommandNameConstant:
		revision := formatter.ensureValue(formatter.argumentAtIndex(formatter.positionalArguments(arguments[1:]), 0))
		return formatter.render(stage, result, failure, stageTemplates{
			start:            gitRevisionStartTemplateConstant,
			success:          gitRevisionSuccessTemplateConstant,
			failure:          gitRevisionFailureTemplateConstant,
			executionFailure: gitRevisionExecutionFailureTemplateConstant,
		}, revision, workingDirectory)
	case gitMergeSubcommandNameConstant:
		if !containsArgument(arguments, gitAbortFlagConstant) {
			return formatter.buildGenericMessage(command, result, failure, stage)
		}
		return formatter.render(stage, result, failure, stageTemplates{
			start:            gitMergeAbortStartTemplateConstant,
			success:          gitMergeAbortSuccessTemplateConstant,
			failure:          gitMergeAbortFailureTemplateConstant,
			executionFailure: gitMergeAbortExecutionFailureTemplateConstant,
		}, workingDirectory)
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) render(stage messageStage, result ExecutionResult, failure error, templates stageTemplates, values ...any) string {
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(templates.start, values...)
	case messageStageSuccess:
		return fmt.Sprintf(templates.success, values...)
	case messageStageFailure:
		return fmt.Sprintf(templates.failure, append(values, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))...)
	case messageStageExecutionFailure:
		return fmt.Sprintf(templates.executionFailure, append(values, formatter.describeFailure(failure))...)
	default:
		return emptyStringConstant
	}
}

func (formatter CommandMessageFormatter) buildGenericMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	commandLabel := formatter.formatCommandLabel(command)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(genericStartTemplateConstant, commandLabel)
	case messageStageSuccess:
		return fmt.Sprintf(genericSuccessTemplateConstant, commandLabel)
	case messageStageFailure:
		return fmt.Sprintf(genericFailureTemplateConstant, commandLabel, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(genericExecutionFailureTemplateConstant, commandLabel, formatter.describeFailure(failure))
	default:
		return emptyStringConstant
	}
}

func (formatter CommandMessageFormatter) formatCommandLabel(command ShellCommand) string {
	commandLabel := string(command.Name)
	if len(command.Details.Arguments) > 0 {
		commandLabel = fmt.Sprintf(commandWithArgumentsTemplateConstant, commandLabel, strings.Join(command.Details.Arguments, commandArgumentsJoinSeparatorConstant))
	}
	return fmt.Sprintf(commandLabelTemplateConstant, commandLabel, formatter.formatWorkingDirectorySuffix(command))
}

func (formatter CommandMessageFormatter) formatWorkingDirectorySuffix(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(workingDirectorySuffixTemplateConstant, trimmedWorkingDirectory)
}

func (formatter CommandMessageFormatter) formatStandardErrorSuffix(standardError string) string {
	trimmedStandardError := strings.TrimSpace(standardError)
	if len(trimmedStandardError) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmedStandardError)
}

func (formatter CommandMessageFormatter) describeWorkingDirectory(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return defaultWorkingDirectoryLabelConstant
	}
	return trimmedWorkingDirectory
}

func (formatter CommandMessageFormatter) describeFailure(failure error) string {
	if failure == nil {
		return unknownFailureMessageConstant
	}
	return failure.Error()
}

// positionalArguments drops flags and the values of the listed valued flags.
func (formatter CommandMessageFormatter) positionalArguments(arguments []string, valuedFlags ...string) []string {
	positional := make([]string, 0, len(arguments))
	for index := 0; index < len(arguments); index++ {
		trimmed := strings.TrimSpace(arguments[index])
		if len(trimmed) == 0 {
			continue
		}
		if strings.HasPrefix(trimmed, flagPrefixConstant) {
			if containsArgument(valuedFlags, trimmed) {
				index++
			}
			continue
		}
		positional = append(positional, trimmed)
	}
	return positional
}

func (formatter CommandMessageFormatter) argumentAtIndex(arguments []string, index int) string {
	if index >= 0 && index < len(arguments) {
		return arguments[index]
	}
	return emptyStringConstant
}

func (formatter CommandMessageFormatter) ensureValue(value string) string {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) == 0 {
		return fallbackUnknownValueLabelConstant
	}
	return trimmed
}

func containsArgument(arguments []string, value string) bool {
	for _, argument := range arguments {
		if strings.TrimSpace(argument) == value {
			return true
		}
	}
	return false
}

func findFlagValue(arguments []string, flag string) string {
	for index := 0; index < len(arguments); index++ {
		if strings.TrimSpace(arguments[index]) == flag && index+1 < len(arguments) {
			return strings.TrimSpace(arguments[index+1])
		}
	}
	return emptyStringConstant
}
