// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package handle

import "encoding/gob"

// Spec is the bootstrap descriptor a Handle sends a freshly spawned
// worker process before any tell/listen/result traffic: Go closures
// cannot cross a re-exec boundary the way a picklable function reference
// might in other runtimes, so the worker looks up its Work Unit's
// behavior by registered name instead of receiving it directly.
type Spec struct {
	// Name is the registry-ConstructorByName key.
	Name string
	// Input is handed to the constructor; must be gob-encodable.
	Input any
}

func init() {
	gob.Register(Spec{})
}
