// Copyright (c) Granulate. All rights reserved.
// Licensed under the AGPL3 License. See LICENSE.md in the project root for license information.

package bigdata

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/thediveo/success"
)

const rmClass = "org.apache.hadoop.yarn.server.resourcemanager.ResourceManager"

const yarnSiteXML = `<?xml version="1.0"?>
<configuration>
  <property>
    <name>yarn.resourcemanager.hostname</name>
    <value>rm-host</value>
  </property>
  <property>
    <name>yarn.resourcemanager.webapp.address.rm1</name>
    <value>rm-host:8090</value>
  </property>
</configuration>`

var _ = Describe("cluster discovery", func() {

	It("detects a single-master YARN deployment from yarn-site.xml", func() {
		fakeProc(4711, []string{"java", "-Xmx4g", rmClass},
			map[string]string{"HADOOP_CONF_DIR": "/opt/hadoop/conf"},
			map[string]string{"/opt/hadoop/conf/yarn-site.xml": yarnSiteXML})

		sampler := NewSampler()
		Expect(Successful(sampler.Discover(context.Background()))).To(BeTrue())
		Expect(sampler.Mode()).To(Equal(ModeYARN))
		Expect(sampler.MasterAddress()).To(Equal("http://rm-host:8090"))
	})

	It("defaults the webapp address when the config doesn't name one", func() {
		fakeProc(4711, []string{"java", rmClass}, nil,
			map[string]string{"/etc/hadoop/conf/yarn-site.xml": `<configuration>
  <property><name>yarn.resourcemanager.hostname</name><value>rm-other</value></property>
</configuration>`})

		sampler := NewSampler()
		Expect(Successful(sampler.Discover(context.Background()))).To(BeTrue())
		Expect(sampler.MasterAddress()).To(Equal("http://rm-other:8088"))
	})

	It("skips collection on a non-rm1 master of a multi-master deployment", func() {
		fakeProc(4711, []string{"java", rmClass}, nil,
			map[string]string{"/etc/hadoop/conf/yarn-site.xml": `<configuration>
  <property><name>yarn.resourcemanager.address.rm1</name><value>elsewhere:8025</value></property>
  <property><name>yarn.resourcemanager.hostname</name><value>me</value></property>
</configuration>`})

		sampler := NewSampler()
		Expect(Successful(sampler.Discover(context.Background()))).To(BeFalse())
	})

	It("detects a Spark standalone master from its command line", func() {
		fakeProc(815, []string{
			"java", "org.apache.spark.deploy.master.Master",
			"--host", "sparkmaster", "--port", "7077", "--webui-port", "8080",
		}, nil, nil)

		sampler := NewSampler()
		Expect(Successful(sampler.Discover(context.Background()))).To(BeTrue())
		Expect(sampler.Mode()).To(Equal(ModeStandalone))
		Expect(sampler.MasterAddress()).To(Equal("http://sparkmaster:8080"))
	})

	It("reports no cluster on nodes without any master process", func() {
		fakeProc(1, []string{"systemd"}, nil, nil)

		sampler := NewSampler()
		Expect(Successful(sampler.Discover(context.Background()))).To(BeFalse())
	})

	It("honors a preset master address", func() {
		sampler := NewSampler(WithMaster("hardwired:8088", ModeYARN))
		Expect(Successful(sampler.Discover(context.Background()))).To(BeTrue())
		Expect(sampler.MasterAddress()).To(Equal("http://hardwired:8088"))
		Expect(sampler.Mode()).To(Equal(ModeYARN))
	})

})
