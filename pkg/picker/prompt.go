package picker

import "github.com/AlecAivazis/survey/v2"

// Prompter abstracts the terminal questions so the flow can be driven
// programmatically in tests.
type Prompter interface {
	Select(message string, options []string) (string, error)
	Input(message string) (string, error)
	Confirm(message string, def bool) (bool, error)
}

// DefaultPrompter returns the survey-backed terminal prompter.
func DefaultPrompter() Prompter {
	return surveyPrompter{}
}

type surveyPrompter struct{}

func (surveyPrompter) Select(message string, options []string) (string, error) {
	var result string
	q := &survey.Select{
		Message: message,
		Options: options,
	}
	return result, survey.AskOne(q, &result)
}

func (surveyPrompter) Input(message string) (string, error) {
	var result string
	q := &survey.Input{Message: message}
	return result, survey.AskOne(q, &result)
}

func (surveyPrompter) Confirm(message string, def bool) (bool, error) {
	var result bool
	q := &survey.Confirm{Message: message, Default: def}
	return result, survey.AskOne(q, &result)
}
