package pulse_test

import (
	"context"
	"time"

	"github.com/arya-analytics/pulse"
	"github.com/arya-analytics/pulse/internal/meta"
	"github.com/arya-analytics/pulse/internal/schema"
	"github.com/arya-analytics/pulse/mock"
	"github.com/cockroachdb/errors"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Pulse", func() {
	var (
		builder *mock.Builder
		ctx     context.Context
	)
	newNode := func(addr pulse.Address) pulse.Pulse {
		p, err := builder.New(addr)
		Expect(err).ToNot(HaveOccurred())
		return p
	}
	mutation := func(key string, counter, writeTime int64) pulse.Mutation {
		return pulse.Mutation{
			Keyspace: "app",
			Key:      []byte(key),
			Writes: []pulse.TableWrite{{
				Table:   "users",
				Version: &pulse.KeyVersion{Counter: counter, WriteTime: writeTime},
			}},
		}
	}
	BeforeEach(func() {
		ctx = context.Background()
		builder = mock.NewBuilder(
			pulse.WithInterval(10*time.Millisecond),
			pulse.WithDatacenter("dc-east"),
		)
		builder.Catalog = schema.NewStatic(
			schema.TableMeta{TableKeyspace: "app", TableName: "users", Encoding: schema.EncodingText},
		)
		builder.Placement = mock.Placement{Replicas: map[string][]pulse.Address{
			"app": {"node-a:9230", "node-b:9230", "node-self:9230"},
		}}
		builder.DigestNet.Route("node-a:9230")
		builder.DigestNet.Route("node-b:9230")
		builder.ShutdownNet.Route("node-a:9230")
		builder.ShutdownNet.Route("node-b:9230")
	})
	Describe("Dissemination", func() {
		It("Should deliver one digest per external replica and bump the generation once", func() {
			p := newNode("node-self:9230")
			Expect(p.Start(ctx)).To(Succeed())
			p.OnMutation(mutation("alice", 7, 700))
			for _, dest := range []pulse.Address{"node-a:9230", "node-b:9230"} {
				dest := dest
				Eventually(func() []pulse.Digest {
					return builder.DigestNet.Sent(dest)
				}, time.Second, time.Millisecond).Should(HaveLen(1))
				digest := builder.DigestNet.Sent(dest)[0]
				Expect(digest.Origin).To(Equal("dc-east"))
				Expect(digest.Entries).To(HaveLen(1))
				Expect(digest.Entries[0].KeyID).To(Equal("app.users:alice"))
				Expect(digest.Entries[0].Version).To(Equal(int64(7)))
				Expect(digest.Entries[0].WriteTime).To(Equal(int64(700)))
			}
			Expect(builder.DigestNet.Sent("node-self:9230")).To(BeEmpty())
			Expect(p.Generation()).To(Equal(int64(1)))
			Expect(p.PendingDestinations()).To(Equal(0))
			Consistently(func() int64 { return p.Generation() },
				50*time.Millisecond, 5*time.Millisecond).Should(Equal(int64(1)))
			Expect(p.Stop(ctx)).To(Succeed())
		})
		It("Should not resend a key folded and drained in an earlier tick", func() {
			p := newNode("node-self:9230")
			Expect(p.Start(ctx)).To(Succeed())
			p.OnMutation(mutation("alice", 7, 700))
			Eventually(func() []pulse.Digest {
				return builder.DigestNet.Sent("node-a:9230")
			}, time.Second, time.Millisecond).Should(HaveLen(1))
			Consistently(func() []pulse.Digest {
				return builder.DigestNet.Sent("node-a:9230")
			}, 50*time.Millisecond, 5*time.Millisecond).Should(HaveLen(1))
			Expect(p.Stop(ctx)).To(Succeed())
		})
	})
	Describe("Backfill", func() {
		It("Should disseminate recently written keys without new writes", func() {
			p := newNode("node-self:9230")
			node := builder.Nodes["node-self:9230"]
			Expect(node.Meta.RecordWrite(
				meta.Key{Keyspace: "app", Table: "users", Key: []byte("alice")},
				meta.Version{Counter: 3, WriteTime: 300},
			)).To(Succeed())
			Expect(p.Start(ctx)).To(Succeed())
			Eventually(func() []pulse.Digest {
				return builder.DigestNet.Sent("node-a:9230")
			}, time.Second, time.Millisecond).Should(HaveLen(1))
			digest := builder.DigestNet.Sent("node-a:9230")[0]
			Expect(digest.Entries[0].KeyID).To(Equal("app.users:alice"))
			Expect(digest.Entries[0].Version).To(Equal(int64(3)))
			Expect(p.Stop(ctx)).To(Succeed())
		})
	})
	Describe("Shutdown", func() {
		It("Should notify remaining members and skip convicted ones", func() {
			p := newNode("node-self:9230")
			Expect(p.Start(ctx)).To(Succeed())
			p.OnMutation(mutation("alice", 7, 700))
			Eventually(func() int64 { return p.Generation() },
				time.Second, time.Millisecond).Should(Equal(int64(1)))
			builder.Detector.Convict("node-a:9230", 8.5)
			Expect(p.Stop(ctx)).To(Succeed())
			Expect(builder.ShutdownNet.Sent("node-a:9230")).To(BeEmpty())
			notices := builder.ShutdownNet.Sent("node-b:9230")
			Expect(notices).To(HaveLen(1))
			Expect(notices[0].Origin).To(Equal(pulse.Address("node-self:9230")))
		})
		It("Should drop a convicted destination's pending entries", func() {
			p := newNode("node-self:9230")
			p.OnMutation(mutation("alice", 7, 700))
			Expect(p.PendingDestinations()).To(Equal(2))
			builder.Detector.Convict("node-a:9230", 8.5)
			Expect(p.PendingDestinations()).To(Equal(1))
		})
	})
	Describe("Open", func() {
		It("Should fail when failure detector registration is rejected", func() {
			builder.Detector.RejectRegistration = errors.New("subsystem unavailable")
			_, err := builder.New("node-self:9230")
			Expect(err).To(HaveOccurred())
		})
		It("Should reject an incomplete configuration", func() {
			builder.Placement = nil
			_, err := builder.New("node-self:9230")
			Expect(err).To(HaveOccurred())
		})
	})
})
