package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/linecomp/config"
)

var _ = Describe("Config", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		Expect(os.WriteFile(p, []byte(content), 0o644)).To(Succeed())

		return p
	}

	It("should have valid defaults", func() {
		c := config.Default()

		Expect(c.CacheCapacity).To(Equal(64))
		Expect(c.Jobs).To(Equal(1))
		Expect(c.Validate()).To(Succeed())
	})

	It("should load a YAML file", func() {
		p := write("run.yaml", `
line_size: 32
cache_capacity: 128
output_dir: out
detail: true
filter: read
monitor:
  enabled: true
  port: 8080
s3:
  region: us-west-2
  path_style: true
`)

		c, err := config.Load(p, "")

		Expect(err).NotTo(HaveOccurred())
		Expect(c.LineSize).To(Equal(32))
		Expect(c.CacheCapacity).To(Equal(128))
		Expect(c.OutputDir).To(Equal("out"))
		Expect(c.Detail).To(BeTrue())
		Expect(c.Filter).To(Equal("read"))
		Expect(c.Jobs).To(Equal(1))
		Expect(c.Monitor.Enabled).To(BeTrue())
		Expect(c.Monitor.Port).To(Equal(8080))
		Expect(c.S3.Region).To(Equal("us-west-2"))
		Expect(c.S3.PathStyle).To(BeTrue())
	})

	It("should reject unknown keys", func() {
		p := write("run.yaml", "line_sise: 32\n")

		_, err := config.Load(p, "")

		Expect(err).To(HaveOccurred())
	})

	It("should overlay the env file and the environment", func() {
		p := write("run.yaml", "cache_capacity: 128\njobs: 2\n")
		env := write(".env", "LINECOMP_CACHE_CAPACITY=256\nLINECOMP_DETAIL=true\n")

		GinkgoT().Setenv("LINECOMP_JOBS", "4")
		GinkgoT().Setenv("LINECOMP_CACHE_CAPACITY", "512")

		c, err := config.Load(p, env)

		Expect(err).NotTo(HaveOccurred())
		Expect(c.CacheCapacity).To(Equal(512))
		Expect(c.Jobs).To(Equal(4))
		Expect(c.Detail).To(BeTrue())
	})

	It("should ignore a missing env file", func() {
		_, err := config.Load("", filepath.Join(dir, "missing.env"))

		Expect(err).NotTo(HaveOccurred())
	})

	It("should reject malformed numbers", func() {
		c := config.Default()

		err := c.LoadFromEnv(map[string]string{"LINECOMP_LINE_SIZE": "wide"})

		Expect(err).To(MatchError(config.ErrInvalidConfig))
	})

	DescribeTable("Validate",
		func(mutate func(c *config.Config)) {
			c := config.Default()
			mutate(c)
			Expect(c.Validate()).To(MatchError(config.ErrInvalidConfig))
		},
		Entry("negative line size", func(c *config.Config) { c.LineSize = -1 }),
		Entry("zero capacity", func(c *config.Config) { c.CacheCapacity = 0 }),
		Entry("zero jobs", func(c *config.Config) { c.Jobs = 0 }),
		Entry("unknown filter", func(c *config.Config) { c.Filter = "fetch" }),
		Entry("bad port", func(c *config.Config) { c.Monitor.Port = 70000 }),
	)
})
