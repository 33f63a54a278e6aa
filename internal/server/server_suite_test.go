package server

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestServer(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Server Suite")
}

const (
	ErrorMsgPattern    = `[ \w[:punct:]]+`
	SeparatorPattern   = `\r\n`
	ErrorPattern       = ErrorResponse + SeparatorPattern
	ClientErrorPattern = ClientErrorResponse + ` ` + ErrorMsgPattern + SeparatorPattern
	ServerErrorPattern = ServerErrorResponse + ` ` + ErrorMsgPattern + SeparatorPattern
	EndPattern         = EndResponse + SeparatorPattern
	RemovedPattern     = RemovedResponse + SeparatorPattern
)
