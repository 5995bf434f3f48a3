package domain

// ParticleKind discriminates the wire-level update variants a transport can
// emit during one generation call.
type ParticleKind string

const (
	ParticleText       ParticleKind = "text"        // text delta extending the open text fragment
	ParticleFragment   ParticleKind = "fragment"    // one complete non-delta fragment
	ParticleUsage      ParticleKind = "usage"       // token metrics snapshot
	ParticleModel      ParticleKind = "model"       // vendor-resolved model name
	ParticleStopReason ParticleKind = "stop_reason" // why generation stopped
	ParticleBoundary   ParticleKind = "boundary"    // content block boundary closing the open text fragment
	ParticleError      ParticleKind = "error"       // in-band upstream failure
	ParticleDone       ParticleKind = "done"        // end of stream
)

// Particle is one ordered wire update. Exactly the field selected by Kind is
// meaningful; the rest stay zero.
type Particle struct {
	Kind       ParticleKind
	Text       string
	Fragment   Fragment
	Usage      *Usage
	Model      string
	StopReason StopReason
	Message    string
}
