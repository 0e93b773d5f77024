package pebblemeta_test

import (
	"time"

	"github.com/arya-analytics/pulse/internal/meta"
	"github.com/arya-analytics/pulse/internal/meta/pebblemeta"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("PebbleMeta", func() {
	var (
		db    *pebble.DB
		store *pebblemeta.DB
	)
	BeforeEach(func() {
		var err error
		db, err = pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
		Expect(err).ToNot(HaveOccurred())
		store = pebblemeta.Wrap(db, pebblemeta.Config{})
	})
	AfterEach(func() {
		Expect(db.Close()).To(Succeed())
	})
	It("Should round-trip a recorded write", func() {
		key := meta.Key{Keyspace: "app", Table: "users", Key: []byte("alice")}
		Expect(store.RecordWrite(key, meta.Version{Counter: 7, WriteTime: 700})).To(Succeed())
		v, ok, err := store.StoredVersion("app", "users", []byte("alice"))
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal(meta.Version{Counter: 7, WriteTime: 700}))
	})
	It("Should report absent keys without error", func() {
		_, ok, err := store.StoredVersion("app", "users", []byte("nobody"))
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeFalse())
	})
	It("Should list recently written keys, including NUL bytes in raw keys", func() {
		key := meta.Key{Keyspace: "app", Table: "blobs", Key: []byte{0x00, 0xff, 0x00}}
		Expect(store.RecordWrite(key, meta.Version{Counter: 1, WriteTime: 100})).To(Succeed())
		keys, err := store.RecentlyWrittenKeys()
		Expect(err).ToNot(HaveOccurred())
		Expect(keys).To(HaveLen(1))
		Expect(keys[0]).To(Equal(key))
	})
	It("Should exclude records older than the window", func() {
		narrow := pebblemeta.Wrap(db, pebblemeta.Config{Window: time.Nanosecond})
		key := meta.Key{Keyspace: "app", Table: "users", Key: []byte("alice")}
		Expect(narrow.RecordWrite(key, meta.Version{Counter: 1, WriteTime: 100})).To(Succeed())
		time.Sleep(time.Millisecond)
		keys, err := narrow.RecentlyWrittenKeys()
		Expect(err).ToNot(HaveOccurred())
		Expect(keys).To(BeEmpty())
	})
	It("Should keep a newer write's version", func() {
		key := meta.Key{Keyspace: "app", Table: "users", Key: []byte("alice")}
		Expect(store.RecordWrite(key, meta.Version{Counter: 1, WriteTime: 100})).To(Succeed())
		Expect(store.RecordWrite(key, meta.Version{Counter: 2, WriteTime: 200})).To(Succeed())
		v, ok, err := store.StoredVersion("app", "users", []byte("alice"))
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(v.Counter).To(Equal(int64(2)))
	})
})
