// Package upstream provides the slow sources the resolve cache sits in
// front of: a simulated DNS server, the system resolver and a Redis
// keyspace. Every source satisfies cache.Resolver.
package upstream
