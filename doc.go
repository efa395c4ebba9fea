// Package swarm implements peer discovery for a flat group of
// equivalent nodes on one LAN segment, built on multicast DNS (RFC 6762)
// query/response semantics.
//
// Every node periodically queries for a service PTR name and answers
// queries from other members with its own advertised (port, address)
// pairs and optional TXT attributes. A lightweight suppression scheme
// keeps aggregate query/response traffic roughly constant as the swarm
// grows: once enough peers have answered a given query round, the
// remaining members stay quiet.
//
// A node is created with a Builder and controlled through the returned
// Guard:
//
//	g, err := swarm.NewBuilder("myapp", "node-7", swarm.WithCadence(5*time.Second)).
//		Spawn(func(p swarm.Peer) {
//			log.Printf("peer %s seen at %v", p.ID, p.LastSeen)
//		})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer g.Shutdown()
//
//	g.Add(8080, []net.IP{localIP})
//
// Peer events (new, updated, and tombstoned on expiry) arrive on the
// callback from a single internal goroutine; it must not block.
package swarm
