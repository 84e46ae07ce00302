package mcp

const serverInstructions = `klock serializes conflicting intents between autonomous agents.

Workflow:
1. register_agent once per agent; the priority you register is permanent and
   lower values win conflicts (they are "older").
2. acquire_lease before touching a shared resource, naming the resource and a
   predicate (PROVIDES, CONSUMES, MUTATES, DELETES, DEPENDS_ON, RENAMES).
3. On success you get a lease_id; release_lease when done, or heartbeat_lease
   to keep long work alive past the TTL.
4. On denial the reason is WAIT (retry after wait_time milliseconds) or DIE
   (back off and retry later; an agent as old as or older than you holds the
   resource, or you are not registered).
5. check_intents evaluates a whole manifest without taking any lease.

Reads (CONSUMES, DEPENDS_ON) share; writes (MUTATES, DELETES, RENAMES) are
exclusive. The same agent_id + session_id pair never conflicts with itself.`
