package audit

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/mock"

	"github.com/skipor/kvserver/internal/util"
	"github.com/skipor/kvserver/log"
	"github.com/skipor/kvserver/protocol"
	. "github.com/skipor/kvserver/testutil"
)

var testTime = time.Date(2017, 3, 1, 12, 0, 0, 0, time.UTC)

var _ = Describe("record", func() {
	It("format", func() {
		rec := appendRecord(nil, testTime, protocol.OpAdd, protocol.String("k"), protocol.Int(5))
		Expect(string(rec)).To(Equal("2017-03-01T12:00:00Z\tAdd\t\"+k\\r\\n\"\t\":5\\r\\n\"\n"))
	})
	It("absent values", func() {
		rec := appendRecord(nil, testTime, protocol.OpGet, protocol.String("k"), nil)
		Expect(string(rec)).To(HaveSuffix("\tGet\t\"+k\\r\\n\"\t-\n"))
	})
})

var _ = Describe("audit file", func() {
	var (
		f        *File
		filename string
		conf     Config
	)
	BeforeEach(func() {
		filename = TmpFileName()
		conf = Config{Name: filename}
		conf.BufSize = Rand.Intn(1024)
	})
	JustBeforeEach(func() {
		var err error
		f, err = Open(log.NewLogger(log.DebugLevel, GinkgoWriter), conf)
		Expect(err).To(BeNil(), "%v", err)
		f.now = func() time.Time { return testTime }
	})
	AfterEach(func() {
		f.Close()
		archives, _ := filepath.Glob(filename + ".*")
		for _, name := range append(archives, filename) {
			os.Remove(name)
		}
	})
	ReadLines := func(name string) []string {
		data, err := os.ReadFile(name)
		Expect(err).To(BeNil())
		return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	}

	It("appends records", func() {
		Expect(f.Log(protocol.OpAdd, protocol.String("a"), protocol.Int(1))).To(Succeed())
		Expect(f.Log(protocol.OpDelete, protocol.String("a"), nil)).To(Succeed())
		Expect(f.Close()).To(Succeed())
		lines := ReadLines(filename)
		Expect(lines).To(HaveLen(2))
		Expect(lines[0]).To(ContainSubstring("\tAdd\t"))
		Expect(lines[1]).To(ContainSubstring("\tDelete\t"))
	})

	Context("existing file", func() {
		BeforeEach(func() {
			Expect(os.WriteFile(filename, []byte("previous\n"), Perm)).To(Succeed())
		})
		It("is appended", func() {
			Expect(f.Log(protocol.OpGet, protocol.Null{}, nil)).To(Succeed())
			Expect(f.Close()).To(Succeed())
			lines := ReadLines(filename)
			Expect(lines).To(HaveLen(2))
			Expect(lines[0]).To(Equal("previous"))
		})
	})

	It("log after close fails", func() {
		Expect(f.Close()).To(Succeed())
		err := f.Log(protocol.OpGet, protocol.Null{}, nil)
		Expect(util.Unwrap(err)).To(Equal(ErrClosed))
	})

	Context("rotation", func() {
		BeforeEach(func() {
			conf.RotateSize = 1
		})
		It("moves full file to archive", func() {
			Expect(f.Log(protocol.OpAdd, protocol.String("a"), protocol.Int(1))).To(Succeed())
			archives, err := filepath.Glob(filename + ".*")
			Expect(err).To(BeNil())
			Expect(archives).To(HaveLen(1))
			Expect(ReadLines(archives[0])).To(HaveLen(1))
			stat, err := os.Stat(filename)
			Expect(err).To(BeNil())
			Expect(stat.Size()).To(BeZero())
			Expect(f.Log(protocol.OpGet, protocol.String("a"), nil)).To(Succeed())
		})

		It("reopen retried after failure", func() {
			openErr := errors.New("open failed")
			f.open = func(string, int, os.FileMode) (*os.File, error) { return nil, openErr }
			Expect(f.Log(protocol.OpAdd, protocol.String("a"), protocol.Int(1))).To(Succeed())
			Expect(f.file).To(BeNil())

			err := f.Log(protocol.OpAdd, protocol.String("b"), protocol.Int(2))
			Expect(util.Unwrap(err)).To(Equal(openErr))

			f.open = os.OpenFile
			f.config.RotateSize = 0
			Expect(f.Log(protocol.OpDelete, protocol.String("a"), nil)).To(Succeed())
			Expect(f.Close()).To(Succeed())
			lines := ReadLines(filename)
			Expect(lines).To(HaveLen(1))
			Expect(lines[0]).To(ContainSubstring("\tDelete\t"))
		})

		It("close after failed reopen", func() {
			f.open = func(string, int, os.FileMode) (*os.File, error) { return nil, errors.New("open failed") }
			Expect(f.Log(protocol.OpAdd, protocol.String("a"), protocol.Int(1))).To(Succeed())
			Expect(f.Close()).To(Succeed())
			err := f.Log(protocol.OpGet, protocol.String("a"), nil)
			Expect(util.Unwrap(err)).To(Equal(ErrClosed))
		})
	})
})

var _ = Describe("audit file write and sync", func() {
	var (
		f        *File
		mfile    *mockFile
		mflusher *mockFlusher
	)
	const writeNum = 3
	BeforeEach(func() {
		mfile = &mockFile{}
		mflusher = &mockFlusher{}
		mfile.On("Write", mock.Anything).Return(func(p []byte) int { return len(p) }, nil)
		mflusher.On("Flush").Return(nil)
		f = &File{
			log:     log.NewLogger(log.DebugLevel, GinkgoWriter),
			writer:  mfile,
			flusher: mflusher,
			file:    mfile,
			now:     func() time.Time { return testTime },
		}
	})
	AfterEach(func() {
		mfile.AssertExpectations(GinkgoT())
		mflusher.AssertExpectations(GinkgoT())
	})
	WriteRecord := func() {
		Expect(f.Log(protocol.OpPing, nil, nil)).To(Succeed())
	}

	It("sync period less than min", func() {
		f.config.SyncPeriod = MinSyncPeriod - 1
		Expect(f.isSyncEveryRecord()).To(BeTrue())
		mfile.On("Sync").Return(nil)
		for i := 0; i < writeNum; i++ {
			WriteRecord()
			mfile.AssertNumberOfCalls(GinkgoT(), "Sync", i+1)
			mflusher.AssertNumberOfCalls(GinkgoT(), "Flush", i+1)
		}
		mfile.On("Close").Return(nil).Once()
		f.Close()
		mflusher.AssertNumberOfCalls(GinkgoT(), "Flush", writeNum+1)
	})

	It("background sync", func() {
		const syncPeriod = MinSyncPeriod
		f.config.SyncPeriod = syncPeriod
		Expect(f.isSyncEveryRecord()).To(BeFalse())
		onSync := make(chan struct{})
		mfile.On("Sync").Return(func() error {
			onSync <- struct{}{}
			return nil
		})
		f.startSync()
		for i := 0; i < writeNum; i++ {
			WriteRecord()
			Eventually(onSync, 2*syncPeriod).Should(Receive())
		}
		Consistently(onSync, 2*syncPeriod).ShouldNot(Receive())

		mfile.AssertNumberOfCalls(GinkgoT(), "Sync", writeNum)
		mfile.On("Close").Return(nil).Once()
		f.Close()

		// Background routine finished.
		f.size += 10
		Consistently(onSync, 2*syncPeriod).ShouldNot(Receive())
	})
})

var _ = Describe("audit file close", func() {
	It("flush error returned", func() {
		mfile := &mockFile{}
		mflusher := &mockFlusher{}
		flushErr := errors.New("flush failed")
		mflusher.On("Flush").Return(flushErr).Once()
		mfile.On("Close").Return(nil).Once()
		f := &File{
			log:     log.NewLogger(log.DebugLevel, GinkgoWriter),
			writer:  mfile,
			flusher: mflusher,
			file:    mfile,
			now:     func() time.Time { return testTime },
		}
		err := f.Close()
		Expect(util.Unwrap(err)).To(Equal(flushErr))
		mfile.AssertExpectations(GinkgoT())
		mflusher.AssertExpectations(GinkgoT())
	})
})
