package trace

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func npyBytes(rows, width int, descr string) []byte {
	header := fmt.Sprintf(
		"{'descr': '%s', 'fortran_order': False, 'shape': (%d, %d), }",
		descr, rows, width)

	pad := 16 - (len(npyMagic)+4+len(header)+1)%16
	header += strings.Repeat(" ", pad%16) + "\n"

	buf := &bytes.Buffer{}
	buf.Write(npyMagic)
	buf.Write([]byte{1, 0})
	binary.Write(buf, binary.LittleEndian, uint16(len(header)))
	buf.WriteString(header)

	for i := 0; i < rows*width; i++ {
		buf.WriteByte(byte(i))
	}

	return buf.Bytes()
}

var _ = Describe("NpyReader", func() {
	It("should read every row", func() {
		r, err := NewNpyReader(bytes.NewReader(npyBytes(3, 4, "|u1")))
		Expect(err).NotTo(HaveOccurred())
		Expect(r.LineSize()).To(Equal(4))
		Expect(r.NumLines()).To(Equal(uint64(3)))
		Expect(NumLines(r)).To(Equal(uint64(3)))

		reqs := readAll(r)
		Expect(reqs).To(HaveLen(3))
		Expect(reqs[2].Index).To(Equal(uint64(2)))
		Expect(reqs[2].Data).To(Equal([]byte{8, 9, 10, 11}))
	})

	It("should reject a non-uint8 dtype", func() {
		_, err := NewNpyReader(bytes.NewReader(npyBytes(1, 4, "<f8")))
		Expect(err).To(MatchError(ContainSubstring("not uint8")))
	})

	It("should reject a file without the magic", func() {
		_, err := NewNpyReader(strings.NewReader("PK\x03\x04 not numpy"))
		Expect(err).To(HaveOccurred())
	})

	It("should fail on a truncated body", func() {
		data := npyBytes(2, 4, "|u1")
		r, err := NewNpyReader(bytes.NewReader(data[:len(data)-2]))
		Expect(err).NotTo(HaveOccurred())

		_, err = r.Next()
		Expect(err).NotTo(HaveOccurred())

		_, err = r.Next()
		Expect(err).To(MatchError(io.ErrUnexpectedEOF))
	})
})
