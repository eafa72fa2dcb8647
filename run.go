package linux_agent

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/pflag"
)

const (
	// Linux terminal command string to clear the current line and reset the cursor
	clearLineVT100 = "\033[2K\r"
	logFilename    = "installer.log"
)

// Run is the installer entry point. It deploys the agent artifact from the
// current working directory and returns the process exit code: 0 on a fully
// successful installation, 1 when a precondition fails or any step of the
// installation (including the delegated self-install) reports an error.
func Run() int {
	logfile := startLogging(logFilename)
	defer logfile.Close()

	config, err := NewConfig()
	if err != nil {
		log.Println(err)
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	config.Variables["installerName"] = os.Args[0]
	translator := NewTranslatorVar(config.Variables)

	var langOptions []string
	for _, l := range translator.GetLanguages() {
		langOptions = append(langOptions, fmt.Sprintf("%s (%s)", l, translator.GetLanguageDisplay(l)))
	}
	lang := pflag.String("lang", "", "message language: "+strings.Join(langOptions, ", "))
	rollback := pflag.Bool("rollback-on-failure", false, "undo completed steps when a later step fails")
	pflag.Parse()

	if len(*lang) > 0 {
		if err := translator.SetLanguage(*lang); err != nil {
			fmt.Printf("Language '%s' not available\n", *lang)
		}
	}

	installer := NewInstaller(config)
	stepTotal := len(installer.Steps())
	stepNumber := 0
	installer.SetProgressFunction(func(status InstallStatus) {
		if status.Step != nil && status.Err == nil {
			stepNumber++
			fmt.Printf("%s(%d/%d) %s", clearLineVT100, stepNumber, stepTotal, status.Step.Name)
		}
	})

	// Ctrl-C only signals the installer; the rollback runs below, in this
	// goroutine, once Install has let go of the step in progress.
	cancelChannel := make(chan os.Signal, 1)
	signal.Notify(cancelChannel, os.Interrupt)
	go func() {
		<-cancelChannel
		installer.Abort()
	}()

	fmt.Println(translator.Get("installing"))
	if err := installer.Install(); err != nil {
		log.Println(err)
		if errors.Is(err, ErrInstallAborted) {
			fmt.Println(clearLineVT100 + translator.Get("install_aborted"))
			installer.Rollback()
			fmt.Println(translator.Get("install_rolled_back"))
			return 1
		}
		fmt.Println(clearLineVT100 + translateError(translator, err))
		if *rollback {
			installer.Rollback()
			fmt.Println(translator.Get("install_rolled_back"))
		}
		return 1
	}
	fmt.Println(clearLineVT100 + installer.SizeString())
	fmt.Println(translator.Get("install_done"))
	fmt.Println(translator.Get("guidance"))
	return 0
}

// translateError maps the precondition sentinel errors onto their localized
// messages; every other error is reported as a failed step.
func translateError(translator *Translator, err error) string {
	switch {
	case errors.Is(err, ErrNotRoot):
		return translator.Get(ErrNotRoot.Error())
	case errors.Is(err, ErrArtifactMissing):
		return translator.Get(ErrArtifactMissing.Error())
	default:
		return fmt.Sprintf("%s: %s", translator.Get("install_failed"), err)
	}
}

// startLogging sets up the logging
func startLogging(logFilename string) *os.File {
	logfile, err := StartLogging(logFilename, false)
	if err != nil {
		log.Fatal(err)
	}
	return logfile
}

// StartLogging routes the standard logger to the given logfile (and,
// optionally, stderr). The agent daemon logs to both so the journal and the
// logfile carry the same record.
func StartLogging(path string, alsoStderr bool) (*os.File, error) {
	logfile, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, err
	}
	log.SetFlags(log.Ldate | log.Ltime)
	if alsoStderr {
		log.SetOutput(io.MultiWriter(os.Stderr, logfile))
	} else {
		log.SetOutput(logfile)
	}
	return logfile, nil
}
