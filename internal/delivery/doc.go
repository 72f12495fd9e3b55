// Package delivery moves frames through a bridge.Handle outside of a host
// media pipeline.
//
// A Supplier buffers upstream frames and answers the source clip's frame
// requests. A Pump renders the committed script clip with a fixed number of
// workers and hands frames to a Sink in presentation order, stamped on the
// 100ns reference clock. A Session ties the two to a Handle and stops the
// pump around reloads.
package delivery
