// Copyright (c) Granulate. All rights reserved.
// Licensed under the AGPL3 License. See LICENSE.md in the project root for license information.

/*
Package metadata discovers identifying metadata of the managed environment a
process runs in.

Currently this is the Databricks job name: on Databricks clusters the driver
address is taken from the deployed Ganglia metrics properties and the job (or
cluster) name is then read off the local Spark UI's cluster usage tags. The
lookup polls for a bounded time, as both the properties file and the first
Spark application only appear while the cluster is provisioning.
*/
package metadata
