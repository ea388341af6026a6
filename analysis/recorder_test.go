package analysis

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/linecomp/datarecording"
	"github.com/sarchlab/linecomp/pattern"
	"github.com/sarchlab/linecomp/trace"
)

var _ = Describe("DetailWriter", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	readRecords := func(path string) [][]string {
		file, err := os.Open(path)
		Expect(err).NotTo(HaveOccurred())
		defer file.Close()

		records, err := csv.NewReader(file).ReadAll()
		Expect(err).NotTo(HaveOccurred())

		return records
	}

	It("should render base-delta rows", func() {
		req := trace.Request{
			Index:      3,
			Address:    0x80,
			HasAddress: true,
			Kind:       trace.Write,
		}
		o := pattern.BaseDeltaOutcome(pattern.Granularity{BaseSize: 4, DeltaSize: 2}, false)

		Expect(DetailRow("w", req, o)).To(Equal([]string{
			"w", "3", "0x80", "W", "B4D2", "4", "2", "false",
		}))
	})

	It("should leave base-delta columns empty for other patterns", func() {
		req := trace.Request{Index: 0}
		o := pattern.Outcome{Kind: pattern.KindZeros}

		Expect(DetailRow("w", req, o)).To(Equal([]string{
			"w", "0", "", "-", "Zeros", "", "", "",
		}))
	})

	It("should write the header once across writers", func() {
		path := DetailPath(dir)

		for i := 0; i < 2; i++ {
			d, err := NewDetailWriter(path)
			Expect(err).NotTo(HaveOccurred())

			Expect(d.RecordLine("w", trace.Request{Index: uint64(i)},
				pattern.Outcome{Kind: pattern.KindNotDefined})).To(Succeed())
			Expect(d.Close()).To(Succeed())
		}

		records := readRecords(path)
		Expect(records).To(HaveLen(3))
		Expect(records[0]).To(Equal(DetailHeader))
		Expect(records[1][1]).To(Equal("0"))
		Expect(records[2][1]).To(Equal("1"))
	})

	It("should fail to open a path in a missing directory", func() {
		_, err := NewDetailWriter(filepath.Join(dir, "missing", "detail.csv"))

		Expect(err).To(MatchError(ContainSubstring("file is not open")))
	})

	It("should refuse lines after close", func() {
		d, err := NewDetailWriter(DetailPath(dir))
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Close()).To(Succeed())

		err = d.RecordLine("w", trace.Request{}, pattern.Outcome{})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("DBRecorder", func() {
	It("should store one row per line", func() {
		writer := datarecording.NewSQLiteWriter(
			filepath.Join(GinkgoT().TempDir(), "lines"))
		Expect(writer.Init()).To(Succeed())
		defer writer.Close()

		r, err := NewDBRecorder(writer)
		Expect(err).NotTo(HaveOccurred())

		Expect(r.RecordLine("w",
			trace.Request{Index: 0, Address: 0x40, Kind: trace.Read},
			pattern.BaseDeltaOutcome(pattern.Granularity{BaseSize: 8, DeltaSize: 1}, true),
		)).To(Succeed())
		Expect(r.RecordLine("w",
			trace.Request{Index: 1},
			pattern.Outcome{Kind: pattern.KindTemporalLocality},
		)).To(Succeed())
		Expect(r.Flush()).To(Succeed())

		reader := datarecording.NewReaderWithDB(writer.DB)
		reader.MapTable(LinePatternTable, LinePattern{})

		rows, total, err := reader.Query(context.Background(),
			LinePatternTable,
			datarecording.QueryParams{OrderBy: "LineIndex"})
		Expect(err).NotTo(HaveOccurred())
		Expect(total).To(Equal(2))
		Expect(rows[0]).To(Equal(&LinePattern{
			Workload:  "w",
			LineIndex: 0,
			Address:   0x40,
			Kind:      "R",
			Pattern:   "B8D1",
			BaseSize:  8,
			DeltaSize: 1,
			Implicit:  true,
		}))
		Expect(rows[1].(*LinePattern).Pattern).To(Equal("TemporalLocality"))
	})
})

var _ = Describe("CountPatterns", func() {
	It("should count recorded lines per workload and pattern", func() {
		writer := datarecording.NewSQLiteWriter(
			filepath.Join(GinkgoT().TempDir(), "lines"))
		Expect(writer.Init()).To(Succeed())
		defer writer.Close()

		r, err := NewDBRecorder(writer)
		Expect(err).NotTo(HaveOccurred())

		record := func(workload string, o pattern.Outcome) {
			Expect(r.RecordLine(workload, trace.Request{}, o)).To(Succeed())
		}

		b8d1 := pattern.BaseDeltaOutcome(
			pattern.Granularity{BaseSize: 8, DeltaSize: 1}, false)
		record("conv", pattern.Outcome{Kind: pattern.KindNotDefined})
		record("conv", b8d1)
		record("matmul", b8d1)
		record("conv", pattern.Outcome{Kind: pattern.KindZeros})
		record("conv", b8d1)
		Expect(r.Flush()).To(Succeed())

		reader := datarecording.NewReaderWithDB(writer.DB)

		counts, err := CountPatterns(context.Background(), reader, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(counts).To(Equal([]PatternCount{
			{Workload: "conv", Pattern: "Zeros", Lines: 1},
			{Workload: "conv", Pattern: "B8D1", Lines: 2},
			{Workload: "conv", Pattern: "NotDefined", Lines: 1},
			{Workload: "matmul", Pattern: "B8D1", Lines: 1},
		}))

		counts, err = CountPatterns(context.Background(), reader, "matmul")
		Expect(err).NotTo(HaveOccurred())
		Expect(counts).To(Equal([]PatternCount{
			{Workload: "matmul", Pattern: "B8D1", Lines: 1},
		}))
	})
})

var _ = Describe("Recorders", func() {
	It("should forward to every recorder", func() {
		mockCtrl := gomock.NewController(GinkgoT())
		defer mockCtrl.Finish()

		r1 := NewMockLineRecorder(mockCtrl)
		r2 := NewMockLineRecorder(mockCtrl)
		o := pattern.Outcome{Kind: pattern.KindRepeat}

		r1.EXPECT().RecordLine("w", gomock.Any(), o)
		r2.EXPECT().RecordLine("w", gomock.Any(), o)
		r1.EXPECT().Flush()
		r2.EXPECT().Flush()

		rs := Recorders{r1, r2}
		Expect(rs.RecordLine("w", trace.Request{}, o)).To(Succeed())
		Expect(rs.Flush()).To(Succeed())
	})
})
