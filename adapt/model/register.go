// register.go wires the network constructor into the adapt package's
// registration variable (NewClassifierFunc). This init() runs when any package
// imports adapt/model, breaking the import cycle between adapt/ (interface
// owner) and adapt/model/ (implementation).
package model

import "github.com/legal-ner/ner-adapt/adapt"

func init() {
	adapt.NewClassifierFunc = func(cfg adapt.ClassifierConfig) (adapt.Classifier, error) {
		rng := adapt.NewPartitionedRNG(cfg.Seed).ForSubsystem(adapt.SubsystemModelInit)
		return NewNetwork(cfg, rng), nil
	}
}
