package analysis

import (
	"errors"
	"io"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/linecomp/linecache"
	"github.com/sarchlab/linecomp/pattern"
	"github.com/sarchlab/linecomp/trace"
)

var _ = Describe("Builder", func() {
	It("should reject a zero line size", func() {
		_, err := MakeBuilder().Build()
		Expect(err).To(MatchError(pattern.ErrInvalidLineSize))
	})

	It("should reject a non-positive cache capacity", func() {
		_, err := MakeBuilder().
			WithLineSize(32).
			WithCacheCapacity(0).
			Build()
		Expect(err).To(MatchError(linecache.ErrInvalidCapacity))
	})

	It("should publish an empty snapshot on build", func() {
		a, err := MakeBuilder().
			WithLineSize(32).
			WithWorkload("w").
			Build()
		Expect(err).NotTo(HaveOccurred())
		Expect(a.Name()).To(Equal("w"))
		Expect(a.Snapshot()).NotTo(BeNil())
		Expect(a.Snapshot().Total).To(BeZero())
	})
})

var _ = Describe("Analyzer", func() {
	var (
		mockCtrl *gomock.Controller
		reader   *MockReader
		recorder *MockLineRecorder
		progress *MockProgressTracker
		analyzer *Analyzer
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		reader = NewMockReader(mockCtrl)
		recorder = NewMockLineRecorder(mockCtrl)
		progress = NewMockProgressTracker(mockCtrl)

		var err error
		analyzer, err = MakeBuilder().
			WithLineSize(32).
			WithCacheCapacity(4).
			WithWorkload("gpu_matmul").
			WithRecorder(recorder).
			WithProgressBar(progress).
			WithSnapshotInterval(2).
			Build()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	expectLines := func(lines ...[]byte) {
		calls := []any{}
		for i, l := range lines {
			calls = append(calls, reader.EXPECT().Next().
				Return(trace.Request{Index: uint64(i), Data: l}, nil))
		}

		calls = append(calls, reader.EXPECT().Next().
			Return(trace.Request{}, io.EOF))
		gomock.InOrder(calls...)
	}

	It("should classify every line and record it", func() {
		reader.EXPECT().LineSize().Return(32).AnyTimes()
		expectLines(
			make([]byte, 32),
			undefinedLine(1),
			undefinedLine(1),
		)

		gomock.InOrder(
			recorder.EXPECT().RecordLine("gpu_matmul",
				gomock.Any(), pattern.Outcome{Kind: pattern.KindZeros}),
			recorder.EXPECT().RecordLine("gpu_matmul",
				gomock.Any(), pattern.Outcome{Kind: pattern.KindNotDefined}),
			recorder.EXPECT().RecordLine("gpu_matmul",
				gomock.Any(), pattern.Outcome{Kind: pattern.KindTemporalLocality}),
			recorder.EXPECT().Flush(),
		)
		progress.EXPECT().IncrementFinished(uint64(2))
		progress.EXPECT().IncrementFinished(uint64(1))

		result, err := analyzer.Run(reader)

		Expect(err).NotTo(HaveOccurred())
		Expect(result.Workload).To(Equal("gpu_matmul"))
		Expect(result.Lines).To(Equal(uint64(3)))
		Expect(result.Stats.Total).To(Equal(uint64(96)))
		Expect(result.Stats.Z).To(Equal(uint64(32)))
		Expect(result.Stats.U).To(Equal(uint64(32)))
		Expect(result.Stats.T).To(Equal(uint64(32)))
		Expect(result.Coverage()).To(BeNumerically("~", 2.0/3.0, 1e-12))
		Expect(analyzer.Snapshot().Total).To(Equal(uint64(96)))
		Expect(result.Cache.Hits).To(Equal(uint64(1)))
		Expect(result.Cache.Misses).To(Equal(uint64(1)))
		Expect(analyzer.CacheStats()).To(Equal(result.Cache))
	})

	It("should not share the snapshot with the live statistics", func() {
		reader.EXPECT().LineSize().Return(32).AnyTimes()
		expectLines(undefinedLine(7))
		recorder.EXPECT().RecordLine(gomock.Any(), gomock.Any(), gomock.Any())
		recorder.EXPECT().Flush()
		progress.EXPECT().IncrementFinished(uint64(1))

		_, err := analyzer.Run(reader)
		Expect(err).NotTo(HaveOccurred())

		snapshot := analyzer.Snapshot()
		analyzer.Statistics().UpdateTotal()
		Expect(snapshot.Total).To(Equal(uint64(32)))
	})

	It("should reject a trace of a different width", func() {
		reader.EXPECT().LineSize().Return(64).AnyTimes()

		_, err := analyzer.Run(reader)

		Expect(err).To(MatchError(ErrLineWidth))
	})

	It("should reject a line of a different width", func() {
		_, err := analyzer.Process(trace.Request{Data: make([]byte, 16)})

		Expect(err).To(MatchError(ErrLineWidth))
		Expect(analyzer.Statistics().Total).To(BeZero())
	})

	It("should stop at a reader error", func() {
		readErr := errors.New("disk gone")
		reader.EXPECT().LineSize().Return(32).AnyTimes()
		reader.EXPECT().Next().Return(trace.Request{}, readErr)

		_, err := analyzer.Run(reader)

		Expect(err).To(MatchError(readErr))
	})

	It("should stop at a recorder error", func() {
		recErr := errors.New("full")
		reader.EXPECT().LineSize().Return(32).AnyTimes()
		reader.EXPECT().Next().
			Return(trace.Request{Data: make([]byte, 32)}, nil)
		recorder.EXPECT().
			RecordLine(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(recErr)

		_, err := analyzer.Run(reader)

		Expect(err).To(MatchError(recErr))
	})

	It("should not count a line the recorder rejected", func() {
		recErr := errors.New("full")
		recorder.EXPECT().
			RecordLine(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(recErr)

		_, err := analyzer.Process(trace.Request{Data: undefinedLine(3)})

		Expect(err).To(MatchError(recErr))
		Expect(analyzer.Lines()).To(BeZero())
		Expect(analyzer.Statistics().Total).To(BeZero())
		Expect(analyzer.Statistics().U).To(BeZero())
		Expect(analyzer.Statistics().SymbolCounts.Sum()).To(BeZero())
	})
})
