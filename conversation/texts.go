package conversation

import "fmt"

const (
	greetingText = "Welcome to the audit desk! I can take your smart-contract audit request and pass it to our team.\n\nSend /request to get started, or /help to see everything I can do."

	helpText = "Commands:\n" +
		"/request [project name] - start an audit request\n" +
		"/contact - submit the collected request to the audit desk\n" +
		"/status - show what has been collected so far\n" +
		"/cancel - discard the current request\n" +
		"/help - show this message"

	adminHelpText = "\n\nAdmin:\n" +
		"/pending - list undecided requests\n" +
		"/reload - reload settings"

	intakeText = "Tell me about the project. You can send one detail per line, for example:\n\n" +
		"Project: Acme Vault\n" +
		"Contract: 0x...\n" +
		"Website: https://...\n" +
		"Socials: @acme\n" +
		"Description: what the contracts do\n\n" +
		"Send /contact when you are done."

	missingProjectText   = "I still need the project name before I can submit. Send it as \"Project: <name>\", then /contact again."
	noDraftText          = "There is no request in progress. Send /request to start one."
	cancelledText        = "Your request draft was discarded."
	nothingToCancelText  = "Nothing to cancel."
	adminUnavailableText = "The audit desk is not accepting requests right now. Please try /contact again later."
	reloadedText         = "Settings reloaded."

	DefaultReplyText = "Thanks for your message! Send /request to start an audit request, or /help to see what I can do."
)

func collectedText(summary string, hasProject bool) string {
	text := "Got it. Here is what I have so far:\n\n" + summary
	if !hasProject {
		return text + "\n\nWhat is the project name?"
	}
	return text + "\n\nSend more details, or /contact to submit."
}

func requestStartedText(projectName string) string {
	if projectName == "" {
		return intakeText
	}
	return fmt.Sprintf("Starting a request for %s.\n\n%s", projectName, intakeText)
}

func statusText(st State) string {
	summary := summarize(st.Info)
	if summary == "" {
		summary = "(nothing collected yet)"
	}
	return fmt.Sprintf("Status: %s\n\n%s", stepLabel(st.Step), summary)
}

func stepLabel(s Step) string {
	switch s {
	case StepNew:
		return "not started"
	case StepCollecting:
		return "collecting details"
	case StepReady:
		return "ready to submit"
	case StepSubmitted:
		return "submitted"
	default:
		return string(s)
	}
}

func assistPrompt(question string) string {
	return "Answer this message from a prospective client of a smart-contract audit desk in at most 120 words. Be accurate and do not invent prices or dates.\n\nMessage: " + question
}
