// Copyright (c) Granulate. All rights reserved.
// Licensed under the AGPL3 License. See LICENSE.md in the project root for license information.

/*
Package bigdata discovers the big-data cluster manager running on a node
(Hadoop YARN, the Spark standalone master, or Mesos) and samples metrics
from it.

Discovery is process-based: the node's processes are scanned for the YARN
ResourceManager class, the Spark standalone master class, or a mesos-master
binary, and the matching web UI address is derived from the master's own
configuration (yarn-site.xml for YARN, command-line flags for standalone, the
conventional port for Mesos). On multi-master YARN deployments only the rm1
master collects, so the cluster isn't reported multiple times.
*/
package bigdata
