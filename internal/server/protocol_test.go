package server

import (
	"bytes"
	"errors"
	"io"
	"strings"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/kushalsai-01/resolvecache/internal/cache"
)

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

var _ = Describe("reader", func() {
	var (
		input          *bytes.Buffer
		r              reader
		command        []byte
		fields         [][]byte
		clientErr, err error
	)
	ReadCommand := func() {
		command, fields, clientErr, err = r.readCommand()
	}
	BeforeEach(func() {
		input = &bytes.Buffer{}
	})
	JustBeforeEach(func() {
		r = newReader(input)
	})

	Context("well formed commands", func() {
		BeforeEach(func() {
			input.WriteString("resolve   google.com " + Separator)
			input.WriteString("size\n")
		})
		It("splits command and fields", func() {
			ReadCommand()
			Expect(clientErr).To(BeNil())
			Expect(err).To(BeNil())
			Expect(string(command)).To(Equal(ResolveCommand))
			Expect(fields).To(Equal([][]byte{[]byte("google.com")}))

			ReadCommand()
			Expect(err).To(BeNil())
			Expect(string(command)).To(Equal(SizeCommand))
			Expect(fields).To(BeEmpty())

			ReadCommand()
			Expect(err).To(Equal(io.EOF))
		})
	})

	Context("empty line", func() {
		BeforeEach(func() { input.WriteString("   " + Separator) })
		It("is a client error", func() {
			ReadCommand()
			Expect(err).To(BeNil())
			Expect(unwrap(clientErr)).To(Equal(ErrEmptyCommand))
		})
	})

	Context("too large command", func() {
		BeforeEach(func() {
			input.WriteString("resolve " + strings.Repeat("x", 2*MaxCommandSize) + Separator)
			input.WriteString("size" + Separator)
		})
		It("is discarded up to the line end", func() {
			ReadCommand()
			Expect(err).To(BeNil())
			Expect(unwrap(clientErr)).To(Equal(ErrTooLargeCommand))

			ReadCommand()
			Expect(clientErr).To(BeNil())
			Expect(string(command)).To(Equal(SizeCommand))
		})
	})

	Context("input ends inside a command", func() {
		BeforeEach(func() { input.WriteString("resolve goo") })
		It("is an unexpected EOF", func() {
			ReadCommand()
			Expect(unwrap(err)).To(Equal(io.ErrUnexpectedEOF))
		})
	})

	Context("read error", func() {
		readErr := errors.New("some read error")
		It("is returned", func() {
			r = newReader(io.MultiReader(input, failingReader{readErr}))
			ReadCommand()
			Expect(unwrap(err)).To(Equal(readErr))
			Expect(command).To(BeNil())
		})
	})
})

var _ = Describe("key checks", func() {
	It("accepts printable keys up to the limit", func() {
		Expect(checkKey([]byte("google.com"))).To(Succeed())
		Expect(checkKey(bytes.Repeat([]byte("k"), MaxKeySize))).To(Succeed())
	})
	It("rejects long keys", func() {
		Expect(unwrap(checkKey(bytes.Repeat([]byte("k"), MaxKeySize+1)))).To(Equal(ErrTooLargeKey))
	})
	It("rejects control characters", func() {
		Expect(unwrap(checkKey([]byte("a\x7fb")))).To(Equal(ErrInvalidCharInKey))
		Expect(unwrap(checkKey([]byte("a\tb")))).To(Equal(ErrInvalidCharInKey))
	})
	It("rejects values with line breaks", func() {
		Expect(checkValue("93.184.216.34")).To(Succeed())
		Expect(checkValue("with spaces is fine")).To(Succeed())
		Expect(unwrap(checkValue("1.2.3.4\r\nEND"))).To(Equal(ErrInvalidValue))
		Expect(unwrap(checkValue("a\nb"))).To(Equal(ErrInvalidValue))
	})
	It("shares the key limit with the cache", func() {
		Expect(MaxKeySize).To(Equal(cache.MaxKeySize))
	})
	It("wants exactly one key field", func() {
		_, err := parseKeyField(nil)
		Expect(unwrap(err)).To(Equal(ErrMoreFieldsRequired))
		_, err = parseKeyField([][]byte{[]byte("a"), []byte("b")})
		Expect(unwrap(err)).To(Equal(ErrTooManyFields))
		key, err := parseKeyField([][]byte{[]byte("a")})
		Expect(err).To(BeNil())
		Expect(key).To(Equal("a"))
	})
})
