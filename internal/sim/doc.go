// Package sim generates fake device traffic for development and
// demos. A Simulation publishes sensor random walks and camera motion
// on the home/ namespace every tick, and answers control-topic
// commands the way real actuators would.
package sim
